package service

import (
	"fmt"
	"strings"

	"datainsight/internal/analysis"
	"datainsight/internal/models"
)

// Query type tags with dedicated templates
const (
	QueryCorrelation        = "correlation"
	QueryDataQuality        = "data_quality"
	QueryVisualization      = "visualization"
	QueryFeatureEngineering = "feature_engineering"
	QueryPredictiveModeling = "predictive_modeling"
)

type promptTemplate struct {
	instruction string
	format      string
}

var generalTemplate = promptTemplate{
	instruction: `You are a data analysis assistant helping a user understand their dataset.
Provide clear, concise, and accurate information based on the dataset details provided.
Focus on being educational and actionable with your responses.
When suggesting visualizations or analyses, provide specific Python code examples using pandas, matplotlib, or seaborn.`,
	format: "Format your response as follows:\n\n" +
		"## Summary\n[Provide a brief summary of your answer]\n\n" +
		"## Analysis\n[Provide detailed analysis]\n\n" +
		"## Code Example\n```python\n# Include relevant Python code here\n```\n\n" +
		"## Additional Considerations\n[Include any caveats, assumptions, or additional information]\n",
}

var queryTemplates = map[string]promptTemplate{
	QueryCorrelation: {
		instruction: `You are a data analysis assistant focusing on correlation analysis.
Analyze the potential correlations between variables in the dataset.
Provide correlation coefficients and visualization code to illustrate relationships.
Explain the strength and direction of correlations, and whether they indicate causation.`,
		format: "Format your response as follows:\n\n" +
			"## Correlation Summary\n[Summarize the key correlations found or likely to exist]\n\n" +
			"## Detailed Analysis\n[Provide statistical analysis of correlations]\n\n" +
			"## Visualization Code\n```python\n# Code to visualize the correlations\n```\n\n" +
			"## Interpretation\n[Explain what these correlations mean for the data]\n",
	},
	QueryDataQuality: {
		instruction: `You are a data quality assessment specialist.
Analyze the data quality issues in the dataset.
Identify potential problems like missing values, outliers, or inconsistencies.
Suggest approaches to handle these issues with specific code examples.`,
		format: "Format your response as follows:\n\n" +
			"## Data Quality Summary\n[Summarize the key data quality issues]\n\n" +
			"## Quality Issues\n[List and explain each quality issue]\n\n" +
			"## Cleaning Code\n```python\n# Code to clean and improve the data\n```\n\n" +
			"## Recommendations\n[Provide recommendations for improving data quality]\n",
	},
	QueryVisualization: {
		instruction: `You are a data visualization specialist.
Based on the dataset information provided, recommend the most appropriate visualization approach.
Include specific code examples using matplotlib, seaborn, or plotly.
Explain why your recommended visualization is appropriate for this particular data structure.`,
		format: "Format your response as follows:\n\n" +
			"## Recommended Visualizations\n[List recommended visualization types]\n\n" +
			"## Implementation\n```python\n# Code to implement the visualizations\n```\n\n" +
			"## Interpretation Guide\n[Explain how to interpret these visualizations]\n\n" +
			"## Alternative Approaches\n[Suggest alternative visualization approaches if applicable]\n",
	},
	QueryFeatureEngineering: {
		instruction: `You are a feature engineering expert.
Suggest potential feature engineering approaches for this dataset.
Provide specific code examples for implementing these features.
Explain how these new features might improve analysis or model performance.`,
		format: "Format your response as follows:\n\n" +
			"## Feature Ideas\n[List the proposed features and the columns they derive from]\n\n" +
			"## Implementation\n```python\n# Code to build the features\n```\n\n" +
			"## Expected Impact\n[Explain how each feature could improve analysis or models]\n\n" +
			"## Risks\n[Note leakage, sparsity or other pitfalls]\n",
	},
	QueryPredictiveModeling: {
		instruction: `You are a predictive modeling specialist.
Recommend appropriate predictive modeling approaches for this dataset.
Explain why these approaches are suitable and provide starter code for implementing them.
Discuss potential evaluation metrics and validation strategies.`,
		format: "Format your response as follows:\n\n" +
			"## Recommended Models\n[List candidate models and the target they predict]\n\n" +
			"## Starter Code\n```python\n# Code to train and evaluate a baseline model\n```\n\n" +
			"## Evaluation\n[Describe metrics and validation strategy]\n\n" +
			"## Next Steps\n[Suggest how to iterate on the baseline]\n",
	},
}

// templateFor resolves a query type tag; unknown and empty tags share the
// general template
func templateFor(queryType string) promptTemplate {
	if t, ok := queryTemplates[queryType]; ok {
		return t
	}
	return generalTemplate
}

// BuildPrompt composes the provider-agnostic prompt. The dataset section is
// omitted when dc is nil.
func BuildPrompt(query string, dc *models.DatasetContext, queryType string) string {
	tmpl := templateFor(queryType)

	var b strings.Builder
	b.WriteString(tmpl.instruction)
	b.WriteString("\n\n")
	if dc != nil {
		b.WriteString(formatDatasetContext(dc))
		b.WriteString("\n\n")
	}
	b.WriteString("USER QUESTION:\n")
	b.WriteString(query)
	b.WriteString("\n\n")
	b.WriteString(tmpl.format)
	return b.String()
}

func formatDatasetContext(dc *models.DatasetContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "DATASET INFORMATION:\nName: %s\nRows: %d\nColumns: %d\n\nSCHEMA:", dc.Name, dc.Rows, len(dc.Columns))

	for _, col := range dc.Columns {
		var parts []string
		if len(col.ExampleValues) > 0 {
			parts = append(parts, "[Example values: "+strings.Join(col.ExampleValues, ", ")+"]")
		}
		if col.Min != nil && col.Max != nil {
			r := "[Range: " + analysis.FormatFloat(*col.Min) + "-" + analysis.FormatFloat(*col.Max)
			if col.Mean != nil {
				r += fmt.Sprintf(", Mean: %.2f", *col.Mean)
			}
			parts = append(parts, r+"]")
		}
		line := fmt.Sprintf("- %s (%s): %s", col.Name, col.Type, strings.Join(parts, " "))
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(line))
	}

	first := true
	for _, col := range dc.Columns {
		if col.Missing == nil {
			continue
		}
		if first {
			b.WriteString("\n\nDATA QUALITY:")
			first = false
		}
		fmt.Fprintf(&b, "\n- Missing values: %d missing values in '%s' column (%.1f%%)",
			col.Missing.Count, col.Name, col.Missing.Percentage)
	}
	return b.String()
}
