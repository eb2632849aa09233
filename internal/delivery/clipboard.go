package delivery

import (
	"context"

	"github.com/atotto/clipboard"
)

// SystemClipboard implements ports.Clipboard with the platform clipboard.
type SystemClipboard struct {
	write func(string) error
}

func NewSystemClipboard() *SystemClipboard {
	return &SystemClipboard{write: clipboard.WriteAll}
}

func (c *SystemClipboard) SetText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.write(text)
}
