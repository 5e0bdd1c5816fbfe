package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"sigs.k8s.io/yaml"
)

// AppConfigFiles lists the app config file names, in lookup order.
var AppConfigFiles = []string{"app.json", "app.yaml", "app.yml"}

const appSchemaURL = "app.schema.json"

//go:embed schema/app.schema.json
var appSchemaJSON []byte

var (
	appSchemaOnce sync.Once
	appSchema     *jsonschema.Schema
	appSchemaErr  error
)

// Exp is the app config. Only the fields ota reads are modeled; the raw
// document is kept in Project.Raw.
type Exp struct {
	Name           string          `json:"name"`
	Slug           string          `json:"slug"`
	Version        string          `json:"version,omitempty"`
	SDKVersion     string          `json:"sdkVersion,omitempty"`
	RuntimeVersion *RuntimeVersion `json:"runtimeVersion,omitempty"`
	Platforms      []string        `json:"platforms,omitempty"`
	IOS            *PlatformConfig `json:"ios,omitempty"`
	Android        *PlatformConfig `json:"android,omitempty"`
	Updates        *UpdatesConfig  `json:"updates,omitempty"`
	Extra          *ExtraConfig    `json:"extra,omitempty"`
}

// PlatformConfig holds the per-platform overrides ota cares about.
type PlatformConfig struct {
	RuntimeVersion *RuntimeVersion `json:"runtimeVersion,omitempty"`
	BuildNumber    string          `json:"buildNumber,omitempty"`
	VersionCode    int             `json:"versionCode,omitempty"`
}

// UpdatesConfig mirrors the "updates" section of the app config.
type UpdatesConfig struct {
	URL     string `json:"url,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// ExtraConfig holds tool-specific settings under "extra".
type ExtraConfig struct {
	OTA struct {
		ProjectID string `json:"projectId,omitempty"`
	} `json:"ota"`
}

// Project is a loaded app config together with its identity.
type Project struct {
	// Dir is the absolute project root
	Dir string
	// ConfigPath is the app config file that was read
	ConfigPath string
	// Exp is the parsed app config
	Exp Exp
	// ProjectID is the remote app id (extra.ota.projectId)
	ProjectID string
	// Raw is the app config as JSON, after unwrapping a top-level "expo" key
	Raw json.RawMessage
}

// LoadProject reads the app config from projectDir.
//
// JSON and YAML are both accepted; a document of the form {"expo": {...}} is
// unwrapped. The config is validated against the embedded schema. A missing
// file, a schema violation, or a missing project id yields a *ConfigError.
func LoadProject(projectDir string) (*Project, error) {
	absDir, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project directory: %w", err)
	}

	configPath := ""
	for _, name := range AppConfigFiles {
		candidate := filepath.Join(absDir, name)
		if _, err := os.Stat(candidate); err == nil {
			configPath = candidate
			break
		}
	}
	if configPath == "" {
		return nil, &ConfigError{
			Path:    absDir,
			Message: "no app config found (looked for app.json, app.yaml, app.yml)",
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, &ConfigError{Path: configPath, Message: "failed to read app config", Err: err}
	}

	// JSON is a subset of YAML, so one conversion covers every supported file.
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, &ConfigError{Path: configPath, Message: "failed to parse app config", Err: err}
	}

	var document interface{}
	if err := json.Unmarshal(jsonData, &document); err != nil {
		return nil, &ConfigError{Path: configPath, Message: "failed to parse app config", Err: err}
	}
	document = unwrapExpo(document)

	if err := validateAppConfig(document); err != nil {
		return nil, &ConfigError{Path: configPath, Message: "app config is invalid", Err: err}
	}

	raw, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode app config: %w", err)
	}

	var exp Exp
	if err := json.Unmarshal(raw, &exp); err != nil {
		return nil, &ConfigError{Path: configPath, Message: "failed to decode app config", Err: err}
	}

	projectID := ""
	if exp.Extra != nil {
		projectID = exp.Extra.OTA.ProjectID
	}
	if projectID == "" {
		return nil, &ConfigError{
			Path:    configPath,
			Message: "project is not configured: extra.ota.projectId is missing from the app config",
		}
	}

	return &Project{
		Dir:        absDir,
		ConfigPath: configPath,
		Exp:        exp,
		ProjectID:  projectID,
		Raw:        raw,
	}, nil
}

// Platforms returns the platforms the app targets that can receive updates.
// Defaults to android and ios when the config does not list any.
func (p *Project) Platforms() []string {
	if len(p.Exp.Platforms) == 0 {
		return []string{"android", "ios"}
	}
	out := make([]string, 0, len(p.Exp.Platforms))
	for _, platform := range p.Exp.Platforms {
		if platform == "web" {
			continue
		}
		out = append(out, platform)
	}
	sort.Strings(out)
	return out
}

func unwrapExpo(document interface{}) interface{} {
	root, ok := document.(map[string]interface{})
	if !ok {
		return document
	}
	if inner, ok := root["expo"].(map[string]interface{}); ok {
		return inner
	}
	return document
}

func validateAppConfig(document interface{}) error {
	appSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(appSchemaURL, bytes.NewReader(appSchemaJSON)); err != nil {
			appSchemaErr = err
			return
		}
		appSchema, appSchemaErr = compiler.Compile(appSchemaURL)
	})
	if appSchemaErr != nil {
		return fmt.Errorf("failed to compile app config schema: %w", appSchemaErr)
	}
	return appSchema.Validate(document)
}
