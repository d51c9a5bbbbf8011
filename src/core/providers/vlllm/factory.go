package vlllm

import (
	"fmt"
	"sort"
	"strings"

	"indicator-server-go/src/configs"
	"indicator-server-go/src/core/utils"
)

// Factory VLLLM工厂函数类型
type Factory func(config *Config, logger *utils.Logger) (Generator, error)

var (
	factories = make(map[string]Factory)
)

// Register 注册VLLLM提供者工厂
func Register(name string, factory Factory) {
	factories[strings.ToLower(name)] = factory
}

// Create 按配置中的 type 创建VLLLM提供者实例
func Create(vlllmConfig configs.VLLMConfig, logger *utils.Logger) (Generator, error) {
	name := strings.ToLower(vlllmConfig.Type)
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("未知的VLLLM提供者: %s (已注册: %v)", vlllmConfig.Type, GetRegisteredProviders())
	}

	// 转换配置格式
	config := &Config{
		Type:        vlllmConfig.Type,
		ModelName:   vlllmConfig.ModelName,
		BaseURL:     vlllmConfig.BaseURL,
		APIKey:      vlllmConfig.APIKey,
		Temperature: vlllmConfig.Temperature,
		MaxTokens:   vlllmConfig.MaxTokens,
		TopP:        vlllmConfig.TopP,
		Data:        vlllmConfig.Extra,
	}

	provider, err := factory(config, logger)
	if err != nil {
		return nil, fmt.Errorf("创建VLLLM提供者失败: %w", err)
	}

	logger.Debug("VLLLM提供者创建成功", map[string]interface{}{
		"type":       config.Type,
		"model_name": config.ModelName,
	})

	return provider, nil
}

// GetRegisteredProviders 获取已注册的提供者列表
func GetRegisteredProviders() []string {
	var providers []string
	for name := range factories {
		providers = append(providers, name)
	}
	sort.Strings(providers)
	return providers
}
