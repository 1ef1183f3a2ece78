package utils

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	environmentKeySeparatorOldConstant    = "."
	environmentKeySeparatorNewConstant    = "_"
	configurationFileErrorTemplate        = "failed to read configuration %s: %v"
	configurationDecodeErrorTemplate      = "failed to parse configuration: %w"
	embeddedConfigurationErrorTemplate    = "failed to merge embedded configuration: %w"
	configurationTargetMissingMessage     = "configuration target must be a non-nil pointer"
	listSeparatorConstant                 = ","
	searchedLocationsDescriptionConstant  = "search paths"
	configurationLayerEmbeddedConstant    = "embedded"
	configurationLayerFileConstant        = "file"
	configurationLayerEnvironmentConstant = "environment"
)

// ErrConfigurationTargetMissing indicates LoadConfiguration was called without a destination.
var ErrConfigurationTargetMissing = errors.New(configurationTargetMissingMessage)

// ConfigurationFileError reports a configuration file that exists or was requested but could not be read.
type ConfigurationFileError struct {
	Path  string
	Cause error
}

func (fileError ConfigurationFileError) Error() string {
	return fmt.Sprintf(configurationFileErrorTemplate, fileError.Path, fileError.Cause)
}

// Unwrap exposes the underlying read failure.
func (fileError ConfigurationFileError) Unwrap() error {
	return fileError.Cause
}

// ConfigurationLoader layers embedded defaults, a configuration file and prefixed environment variables through Viper.
type ConfigurationLoader struct {
	configurationName         string
	configurationType         string
	environmentPrefix         string
	searchPaths               []string
	embeddedConfiguration     []byte
	embeddedConfigurationType string
}

// LoadedConfiguration describes where the resolved values came from.
type LoadedConfiguration struct {
	ConfigFileUsed string
	// Layers lists the sources merged, lowest precedence first.
	Layers []string
}

// NewConfigurationLoader creates a loader that looks for configurationName in searchPaths and reads
// environment variables named <environmentPrefix>_<SECTION>_<KEY>.
func NewConfigurationLoader(configurationName string, configurationType string, environmentPrefix string, searchPaths []string) *ConfigurationLoader {
	return &ConfigurationLoader{
		configurationName: configurationName,
		configurationType: configurationType,
		environmentPrefix: environmentPrefix,
		searchPaths:       append([]string{}, searchPaths...),
	}
}

// SetEmbeddedConfiguration registers the lowest-precedence configuration document.
func (loader *ConfigurationLoader) SetEmbeddedConfiguration(configurationData []byte, configurationType string) {
	if loader == nil {
		return
	}
	loader.embeddedConfiguration = append([]byte(nil), configurationData...)
	loader.embeddedConfigurationType = strings.TrimSpace(configurationType)
}

// LoadConfiguration decodes the merged configuration into targetConfiguration. An explicit
// configurationFilePath must exist; otherwise the first match in the search paths is used when present.
func (loader *ConfigurationLoader) LoadConfiguration(configurationFilePath string, defaultValues map[string]any, targetConfiguration any) (LoadedConfiguration, error) {
	if targetConfiguration == nil {
		return LoadedConfiguration{}, ErrConfigurationTargetMissing
	}

	viperInstance := viper.New()
	var loaded LoadedConfiguration

	for defaultKey, defaultValue := range defaultValues {
		viperInstance.SetDefault(defaultKey, defaultValue)
	}

	if len(loader.embeddedConfiguration) > 0 {
		viperInstance.SetConfigType(firstNonEmpty(loader.embeddedConfigurationType, loader.configurationType))
		if mergeError := viperInstance.MergeConfig(bytes.NewReader(loader.embeddedConfiguration)); mergeError != nil {
			return LoadedConfiguration{}, fmt.Errorf(embeddedConfigurationErrorTemplate, mergeError)
		}
		loaded.Layers = append(loaded.Layers, configurationLayerEmbeddedConstant)
	}

	fileUsed, fileError := loader.mergeConfigurationFile(viperInstance, strings.TrimSpace(configurationFilePath))
	if fileError != nil {
		return LoadedConfiguration{}, fileError
	}
	if len(fileUsed) > 0 {
		loaded.ConfigFileUsed = fileUsed
		loaded.Layers = append(loaded.Layers, configurationLayerFileConstant)
	}

	if len(loader.environmentPrefix) > 0 {
		viperInstance.SetEnvPrefix(loader.environmentPrefix)
		viperInstance.SetEnvKeyReplacer(strings.NewReplacer(environmentKeySeparatorOldConstant, environmentKeySeparatorNewConstant))
		viperInstance.AutomaticEnv()
		loaded.Layers = append(loaded.Layers, configurationLayerEnvironmentConstant)
	}

	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(listSeparatorConstant),
		mapstructure.TextUnmarshallerHookFunc(),
	))
	if decodeError := viperInstance.Unmarshal(targetConfiguration, decodeHook); decodeError != nil {
		return LoadedConfiguration{}, fmt.Errorf(configurationDecodeErrorTemplate, decodeError)
	}

	return loaded, nil
}

func (loader *ConfigurationLoader) mergeConfigurationFile(viperInstance *viper.Viper, explicitPath string) (string, error) {
	if len(explicitPath) > 0 {
		viperInstance.SetConfigFile(explicitPath)
		viperInstance.SetConfigType(configurationTypeForPath(explicitPath, loader.configurationType))
		if mergeError := viperInstance.MergeInConfig(); mergeError != nil {
			return "", ConfigurationFileError{Path: explicitPath, Cause: mergeError}
		}
		return viperInstance.ConfigFileUsed(), nil
	}

	if len(loader.searchPaths) == 0 || len(loader.configurationName) == 0 {
		return "", nil
	}
	viperInstance.SetConfigName(loader.configurationName)
	viperInstance.SetConfigType(loader.configurationType)
	for _, searchPath := range loader.searchPaths {
		viperInstance.AddConfigPath(searchPath)
	}

	mergeError := viperInstance.MergeInConfig()
	if mergeError == nil {
		return viperInstance.ConfigFileUsed(), nil
	}
	var notFoundError viper.ConfigFileNotFoundError
	if errors.As(mergeError, &notFoundError) {
		return "", nil
	}
	location := viperInstance.ConfigFileUsed()
	if len(location) == 0 {
		location = searchedLocationsDescriptionConstant
	}
	return "", ConfigurationFileError{Path: location, Cause: mergeError}
}

func configurationTypeForPath(filePath string, fallback string) string {
	extension := strings.TrimPrefix(strings.ToLower(filepath.Ext(filePath)), ".")
	switch extension {
	case "yml":
		return "yaml"
	case "yaml", "json", "toml":
		return extension
	default:
		return fallback
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if len(value) > 0 {
			return value
		}
	}
	return ""
}
