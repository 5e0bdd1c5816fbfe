package config

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Runtime version policies.
const (
	PolicyAppVersion    = "appVersion"
	PolicySDKVersion    = "sdkVersion"
	PolicyNativeVersion = "nativeVersion"
)

// RuntimeVersion is either a literal version string or a policy that derives
// one from other app config fields.
type RuntimeVersion struct {
	Value  string
	Policy string
}

func (r *RuntimeVersion) UnmarshalJSON(data []byte) error {
	var literal string
	if err := json.Unmarshal(data, &literal); err == nil {
		r.Value = literal
		return nil
	}

	var policy struct {
		Policy string `json:"policy"`
	}
	if err := json.Unmarshal(data, &policy); err != nil {
		return fmt.Errorf("runtimeVersion must be a string or an object with a policy: %w", err)
	}
	r.Policy = policy.Policy
	return nil
}

func (r RuntimeVersion) MarshalJSON() ([]byte, error) {
	if r.Policy != "" {
		return json.Marshal(map[string]string{"policy": r.Policy})
	}
	return json.Marshal(r.Value)
}

// RuntimeVersion resolves the runtime version for platform. A platform-level
// runtimeVersion overrides the top-level one.
func (p *Project) RuntimeVersion(platform string) (string, error) {
	rv := p.Exp.RuntimeVersion
	platformCfg := p.Exp.platformConfig(platform)
	if platformCfg != nil && platformCfg.RuntimeVersion != nil {
		rv = platformCfg.RuntimeVersion
	}
	if rv == nil {
		return "", &ConfigError{
			Path:    p.ConfigPath,
			Message: fmt.Sprintf("runtimeVersion is not set for platform %q", platform),
		}
	}
	if rv.Value != "" {
		return rv.Value, nil
	}

	switch rv.Policy {
	case PolicyAppVersion:
		if p.Exp.Version == "" {
			return "", p.policyError(rv.Policy, "version")
		}
		return p.Exp.Version, nil
	case PolicySDKVersion:
		if p.Exp.SDKVersion == "" {
			return "", p.policyError(rv.Policy, "sdkVersion")
		}
		return "exposdk:" + p.Exp.SDKVersion, nil
	case PolicyNativeVersion:
		if p.Exp.Version == "" {
			return "", p.policyError(rv.Policy, "version")
		}
		build := ""
		if platformCfg != nil {
			switch platform {
			case "ios":
				build = platformCfg.BuildNumber
			case "android":
				if platformCfg.VersionCode > 0 {
					build = strconv.Itoa(platformCfg.VersionCode)
				}
			}
		}
		if build == "" {
			build = "1"
		}
		return fmt.Sprintf("%s(%s)", p.Exp.Version, build), nil
	default:
		return "", &ConfigError{
			Path:    p.ConfigPath,
			Message: fmt.Sprintf("unsupported runtimeVersion policy %q", rv.Policy),
		}
	}
}

func (p *Project) policyError(policy, field string) error {
	return &ConfigError{
		Path:    p.ConfigPath,
		Message: fmt.Sprintf("runtimeVersion policy %q requires %q to be set", policy, field),
	}
}

func (e *Exp) platformConfig(platform string) *PlatformConfig {
	switch platform {
	case "ios":
		return e.IOS
	case "android":
		return e.Android
	default:
		return nil
	}
}
