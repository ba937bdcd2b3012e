package usecase

import (
	"context"
	"strconv"

	"github.com/PanHywel/TidyMark-sub000/internal/config"
	"github.com/PanHywel/TidyMark-sub000/internal/ports"
)

// Settings keys for the AI options. The settings store wins over the static
// configuration so the options can change without restarting.
const (
	settingEnableAI    = "enableAI"
	settingAIProvider  = "aiProvider"
	settingAIAPIKey    = "aiApiKey"
	settingAIAPIURL    = "aiApiUrl"
	settingAIModel     = "aiModel"
	settingMaxTokens   = "maxTokens"
	settingBatchSize   = "aiBatchSize"
	settingConcurrency = "aiConcurrency"
	settingLanguage    = "classificationLanguage"
)

// LoadAIConfig overlays stored AI settings on top of the configured base.
// A missing or failing settings store leaves the base untouched.
func LoadAIConfig(ctx context.Context, settings ports.SettingsStore, base config.AIConfig) config.AIConfig {
	if settings == nil {
		return base
	}

	values, err := settings.Get(ctx, []string{
		settingEnableAI,
		settingAIProvider,
		settingAIAPIKey,
		settingAIAPIURL,
		settingAIModel,
		settingMaxTokens,
		settingBatchSize,
		settingConcurrency,
		settingLanguage,
	})
	if err != nil {
		return base
	}

	if v, ok := values[settingEnableAI]; ok {
		if enabled, err := strconv.ParseBool(v); err == nil {
			base.Enabled = enabled
		}
	}
	if v := values[settingAIProvider]; v != "" {
		base.Provider = v
	}
	if v := values[settingAIAPIKey]; v != "" {
		base.APIKey = v
	}
	if v := values[settingAIAPIURL]; v != "" {
		base.APIURL = v
	}
	if v := values[settingAIModel]; v != "" {
		base.Model = v
	}
	if v := values[settingLanguage]; v != "" {
		base.Language = v
	}
	if n, err := strconv.Atoi(values[settingMaxTokens]); err == nil && n > 0 {
		base.MaxTokens = n
	}
	if n, err := strconv.Atoi(values[settingBatchSize]); err == nil && n > 0 {
		base.BatchSize = n
	}
	if n, err := strconv.Atoi(values[settingConcurrency]); err == nil && n > 0 {
		base.Concurrency = n
	}

	return base
}
