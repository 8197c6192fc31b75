package document

// Content is the result of one extraction. It is built once and not mutated
// afterwards.
type Content struct {
	Text     string   `json:"text"`
	Images   [][]byte `json:"images"`
	OCRText  string   `json:"ocrText,omitempty"`
	Metadata Metadata `json:"metadata"`
	Warnings []string `json:"warnings,omitempty"`
}

type Metadata struct {
	PageCount int    `json:"pageCount"`
	Title     string `json:"title,omitempty"`
	Author    string `json:"author,omitempty"`
	Language  string `json:"language"`
	HasImages bool   `json:"hasImages"`
	IsScanned bool   `json:"isScanned"`
	OCRUsed   bool   `json:"ocrUsed"`
}

// CombinedText is the native text followed by any OCR text.
func (c *Content) CombinedText() string {
	switch {
	case c.OCRText == "":
		return c.Text
	case c.Text == "":
		return c.OCRText
	default:
		return c.Text + "\n\n" + c.OCRText
	}
}
