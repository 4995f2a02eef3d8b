package relay

// ComposeStructuredPrompt joins the user's instruction with the page
// content extracted by the extension. The two-section layout is what the
// models are prompted against; without page content the instruction goes
// through verbatim. Composition happens once per turn, never per chunk.
func ComposeStructuredPrompt(prompt, formattedContent string) string {
	if formattedContent == "" {
		return prompt
	}
	return "# INSTRUCTION\n" + prompt + "\n# EXTRACTED CONTENT\n" + formattedContent
}
