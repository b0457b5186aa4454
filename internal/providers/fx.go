package providers

import (
	"github.com/smallbiznis/redress/internal/providers/email"
	"github.com/smallbiznis/redress/internal/providers/pdf"
	"github.com/smallbiznis/redress/internal/providers/slack"
	"go.uber.org/fx"
)

// Module wires outbound delivery: letter email, approval posts to Slack and
// letter PDFs. Each falls back to a no-op when unconfigured.
var Module = fx.Module("providers",
	email.Module,
	slack.Module,
	pdf.Module,
)
