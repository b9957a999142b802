package usecase

import (
	"strings"
	"unicode/utf8"

	"campaign-assistant/internal/domain"
)

const (
	maxMessageChars       = 2000
	maxSuggestionTokens   = 1000
	suggestionTemp        = 0.7
	defaultSuggestModel   = "gpt-3.5-turbo"
	noGroupsPlaceholder   = "No specific groups"
	reasonInvalidCampaign = "invalid_campaign"
)

// SuggestionConfig holds the immutable defaults applied to every suggestion
// request.
type SuggestionConfig struct {
	DefaultModel string
	MaxTokens    int
	TopP         *float64
}

func buildSuggestionRequest(c domain.Campaign, cfg SuggestionConfig) (domain.SuggestionRequest, error) {
	if strings.TrimSpace(c.UUID) == "" {
		return domain.SuggestionRequest{}, newError(ErrorInvalidInput, reasonInvalidCampaign, nil)
	}

	messages := sanitizeMessages([]domain.ChatMessage{
		{Role: domain.RoleSystem, Content: buildPersonaPrompt()},
		{Role: domain.RoleUser, Content: buildCampaignPrompt(c)},
	})

	model := strings.TrimSpace(cfg.DefaultModel)
	if model == "" {
		model = defaultSuggestModel
	}

	return domain.SuggestionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: suggestionTemp,
		MaxTokens:   capMaxTokens(cfg.MaxTokens),
		TopP:        cfg.TopP,
	}, nil
}

// capMaxTokens falls back to the hard cap for unset values and never lets a
// configured value exceed it.
func capMaxTokens(configured int) int {
	if configured <= 0 || configured > maxSuggestionTokens {
		return maxSuggestionTokens
	}
	return configured
}

func buildPersonaPrompt() string {
	return strings.Join([]string{
		"You are a marketing expert AI.",
		"Analyze the provided campaign content and suggest improvements.",
		"Focus on making the content more engaging, persuasive, and effective for marketing purposes.",
		"Provide specific suggestions while maintaining the original message's intent.",
	}, " ")
}

func buildCampaignPrompt(c domain.Campaign) string {
	return strings.Join([]string{
		"Please analyze and suggest improvements for this marketing campaign:",
		"Title: " + c.Title,
		"Description: " + c.Description,
		"Target Groups: " + formatGroups(c.Groups),
		"",
		"Please provide improved version of the text I'm currently editing.",
	}, "\n")
}

// formatGroups trims each group and drops blanks before joining.
func formatGroups(groups []string) string {
	kept := make([]string, 0, len(groups))
	for _, g := range groups {
		if g = strings.TrimSpace(g); g != "" {
			kept = append(kept, g)
		}
	}
	if len(kept) == 0 {
		return noGroupsPlaceholder
	}
	return strings.Join(kept, ", ")
}

func sanitizeMessages(messages []domain.ChatMessage) []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(messages))
	for i, m := range messages {
		out[i] = domain.ChatMessage{Role: m.Role, Content: truncateChars(m.Content, maxMessageChars)}
	}
	return out
}

// truncateChars keeps the first n runes of s.
func truncateChars(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
