package clawbox

import (
	"charm.land/glamour/v2"
	"go.uber.org/zap"
)

// RenderGuide renders the embedded getting-started guide for terminal
// display, falling back to the raw markdown when rendering fails (for
// example on a terminal glamour cannot detect).
func RenderGuide() string {
	out, err := glamour.Render(GuideMD, "auto")
	if err != nil {
		zlog.Debug("guide rendering failed, falling back to raw markdown", zap.Error(err))
		return GuideMD
	}
	return out
}
