package nl2sql

import (
	"strconv"
	"strings"
)

const promptPreamble = "You are an expert in converting English questions to MySQL queries."

var promptRules = []string{
	"Generate only the SQL query without any explanations or markdown formatting",
	"Use appropriate JOIN operations when query involves multiple tables",
	"If the question only requires data from one table, don't include unnecessary JOINs",
	"Ensure proper table name qualification when using multiple tables",
	"Use appropriate aggregation functions (COUNT, SUM, AVG, etc.) when needed",
	"Include proper GROUP BY and HAVING clauses when necessary",
	"Handle NULL values appropriately",
	"Use appropriate WHERE conditions for filtering",
	"Use MySQL-specific syntax (such as LIMIT instead of TOP)",
}

// BuildPrompt assembles the single prompt sent to the model: instructions,
// the formatted schema, the numbered rules, then the question.
func BuildPrompt(schemaText, question string) string {
	var b strings.Builder
	b.WriteString(promptPreamble)
	b.WriteString("\n")
	b.WriteString(schemaText)
	if !strings.HasSuffix(schemaText, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("\nImportant rules:\n")
	for i, rule := range promptRules {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(rule)
		b.WriteString("\n")
	}
	b.WriteString("\nConvert the following question to SQL: ")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n")
	return b.String()
}
