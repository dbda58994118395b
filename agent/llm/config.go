package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/shoptalklabs/shoptalk/agent/contract"
	openrouterx "github.com/shoptalklabs/shoptalk/pkg/openrouter"
)

// Component names the model consumers that can carry per-component
// model/temperature overrides.
type Component string

const (
	ComponentPlanner     Component = "planner"
	ComponentSynthesizer Component = "synthesizer"
	ComponentQueryGen    Component = "querygen"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	PlannerModel           string  `envconfig:"PLANNER_MODEL" split_words:"true"`
	SynthesizerModel       string  `envconfig:"SYNTHESIZER_MODEL" split_words:"true"`
	QueryGenModel          string  `envconfig:"QUERYGEN_MODEL" split_words:"true"`
	PlannerTemperature     float32 `envconfig:"PLANNER_TEMPERATURE" split_words:"true" default:"-1"`
	SynthesizerTemperature float32 `envconfig:"SYNTHESIZER_TEMPERATURE" split_words:"true" default:"-1"`
	QueryGenTemperature    float32 `envconfig:"QUERYGEN_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

func (c Config) OpenRouterFor(component Component) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch component {
	case ComponentPlanner:
		if v := strings.TrimSpace(c.PlannerModel); v != "" {
			modelName = v
		}
		if c.PlannerTemperature >= 0 {
			temp = c.PlannerTemperature
		}
	case ComponentSynthesizer:
		if v := strings.TrimSpace(c.SynthesizerModel); v != "" {
			modelName = v
		}
		if c.SynthesizerTemperature >= 0 {
			temp = c.SynthesizerTemperature
		}
	case ComponentQueryGen:
		if v := strings.TrimSpace(c.QueryGenModel); v != "" {
			modelName = v
		}
		if c.QueryGenTemperature >= 0 {
			temp = c.QueryGenTemperature
		}
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
