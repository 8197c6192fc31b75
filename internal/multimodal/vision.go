package multimodal

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/nikhilbhutani/docchat/internal/llm"
)

const transcribePrompt = "Transcribe ALL text visible in this page image exactly as written, in its original language. " +
	"Preserve line breaks and reading order. Return only the text. If the image contains no text, return nothing."

// VisionOCR reads text from page images with a vision-capable model. It
// satisfies document.ImageRecognizer.
type VisionOCR struct {
	gateway  llm.Gateway
	provider string
	model    string
}

// NewVisionOCR uses provider/model when set, otherwise the first configured
// provider that accepts PNG images and its default model.
func NewVisionOCR(gw llm.Gateway, provider, model string) *VisionOCR {
	return &VisionOCR{gateway: gw, provider: provider, model: model}
}

// Available reports whether some provider can take page images.
func (v *VisionOCR) Available() error {
	if v.provider != "" {
		p, err := v.gateway.Provider(v.provider)
		if err != nil {
			return err
		}
		if !p.Accepts("image/png") {
			return fmt.Errorf("provider %q does not accept images", v.provider)
		}
		return nil
	}
	if _, ok := v.gateway.ProviderFor("image/png"); !ok {
		return fmt.Errorf("no configured provider accepts images")
	}
	return nil
}

func (v *VisionOCR) Recognize(ctx context.Context, img []byte) (string, error) {
	mimeType := http.DetectContentType(img)
	if !strings.HasPrefix(mimeType, "image/") {
		return "", fmt.Errorf("vision OCR: unsupported image type %q", mimeType)
	}

	provider := v.provider
	if provider == "" {
		name, ok := v.gateway.ProviderFor(mimeType)
		if !ok {
			return "", fmt.Errorf("vision OCR: no provider accepts %s", mimeType)
		}
		provider = name
	}

	resp, err := v.gateway.Chat(ctx, llm.ChatRequest{
		Provider:    provider,
		Model:       v.model,
		Temperature: 0,
		Messages: []llm.Message{
			{
				Role:    llm.RoleSystem,
				Content: "You are an OCR engine. You output transcribed text and nothing else.",
			},
			{
				Role:        llm.RoleUser,
				Content:     transcribePrompt,
				Attachments: []llm.Attachment{{MIMEType: mimeType, Data: img}},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("vision OCR: %w", err)
	}
	return cleanTranscript(resp.Content), nil
}

// cleanTranscript strips a surrounding code fence some models add.
func cleanTranscript(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		return ""
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
