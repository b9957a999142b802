package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"campaign-assistant/internal/domain"
)

func normalizeResponse(ctx context.Context, logger *slog.Logger, resp domain.ProviderResponse) (string, error) {
	if len(resp.Choices) == 0 || resp.Choices[0].Reply == nil {
		return "", newError(ErrorEmptyResponse, "provider_no_choice", nil)
	}

	switch reply := resp.Choices[0].Reply.(type) {
	case domain.FunctionCallReply:
		args := strings.TrimSpace(reply.Arguments)
		if args == "" {
			args = "{}"
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(args)); err != nil {
			logger.WarnContext(ctx, "function call arguments are not valid JSON; using message content",
				"function", reply.Name, "err", err)
			return reply.Content, nil
		}
		return buf.String(), nil
	case domain.TextReply:
		return reply.Content, nil
	}
	return "", newError(ErrorEmptyResponse, "provider_unknown_reply", nil)
}
