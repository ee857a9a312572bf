package provider

import (
	"context"
	"fmt"
	"strings"

	"kdstore/internal/embedding"
)

// New returns the named provider configured from the environment.
func New(ctx context.Context, name string) (embedding.Provider, error) {
	var (
		p   embedding.Provider
		err error
	)
	switch strings.ToLower(name) {
	case "openai":
		p, err = NewOpenAIProvider()
	case "aliyun", "dashscope":
		p, err = NewAliyunProvider()
	case "gemini":
		p, err = NewGeminiProvider(ctx)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", name)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
