// Package image picks a Node.js Docker image for running the bundler,
// based on the Node version a project pins.
package image

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

const (
	// Auto is the bundler image value that triggers detection
	Auto = "auto"
	// DefaultMajor is used when the project pins no Node version
	DefaultMajor = 20
)

// DefaultImage is the image used when no version signal is found.
var DefaultImage = ImageForMajor(DefaultMajor)

// SupportedMajors are the Node majors an image is published for, newest first.
var SupportedMajors = []int{22, 20, 18}

// ltsCodenames maps nvm LTS aliases to majors.
var ltsCodenames = map[string]int{
	"jod":      22,
	"iron":     20,
	"hydrogen": 18,
}

// ImageForMajor returns the image reference for a Node major version.
func ImageForMajor(major int) string {
	return fmt.Sprintf("node:%d", major)
}

// Detector detects the bundler image for a project.
type Detector struct {
	projectDir string
}

// NewDetector creates a new Detector for the given project directory.
func NewDetector(projectDir string) *Detector {
	return &Detector{projectDir: projectDir}
}

// DetectResult contains the detected image and detection rationale.
type DetectResult struct {
	Image     string   // Docker image, e.g. node:20
	Signals   []string // Files that pinned a version
	Rationale string   // Human-readable explanation of the choice
}

// signal is a version pin found in the project.
type signal struct {
	Name      string
	Priority  int
	Major     int
	Rationale string
}

// Detect reads the version pins of the project. The most specific pin wins;
// without one, DefaultImage is returned.
func (d *Detector) Detect() *DetectResult {
	signals := d.collectSignals()
	if len(signals) == 0 {
		return &DetectResult{
			Image:     DefaultImage,
			Signals:   []string{},
			Rationale: fmt.Sprintf("No Node.js version pinned, using node %d", DefaultMajor),
		}
	}

	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].Priority > signals[j].Priority
	})
	best := signals[0]

	names := make([]string, len(signals))
	for i, sig := range signals {
		names[i] = sig.Name
	}
	return &DetectResult{
		Image:     ImageForMajor(best.Major),
		Signals:   names,
		Rationale: best.Rationale,
	}
}

func (d *Detector) collectSignals() []signal {
	var signals []signal
	for _, vf := range versionFiles {
		data, err := os.ReadFile(filepath.Join(d.projectDir, vf.name))
		if err != nil {
			continue
		}
		major, ok := vf.parse(data)
		if !ok {
			continue
		}
		signals = append(signals, signal{
			Name:      vf.name,
			Priority:  vf.priority,
			Major:     major,
			Rationale: fmt.Sprintf("%s pins Node.js %d", vf.name, major),
		})
	}
	return signals
}

// versionFiles are the files that can pin a Node version, most specific first.
var versionFiles = []struct {
	name     string
	priority int
	parse    func([]byte) (int, bool)
}{
	{".nvmrc", 100, parseVersionFile},
	{".node-version", 90, parseVersionFile},
	{"package.json", 80, parsePackageEngines},
}

// parseVersionFile reads an nvm-style pin: "20", "v18.17.0" or "lts/iron".
func parseVersionFile(data []byte) (int, bool) {
	value := strings.ToLower(strings.TrimSpace(string(data)))
	if alias, ok := strings.CutPrefix(value, "lts/"); ok {
		major, known := ltsCodenames[alias]
		return major, known
	}
	return ParseMajor(value)
}

// ParseMajor extracts the major version from "20", "v20" or "20.11.1".
func ParseMajor(value string) (int, bool) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "v")
	head, _, _ := strings.Cut(value, ".")
	major, err := strconv.Atoi(head)
	if err != nil || major <= 0 {
		return 0, false
	}
	return major, true
}

var versionInConstraint = regexp.MustCompile(`\d+(\.\d+){0,2}`)

// parsePackageEngines reads engines.node from package.json and returns the
// newest supported major the constraint allows.
func parsePackageEngines(data []byte) (int, bool) {
	var pkg struct {
		Engines struct {
			Node string `json:"node"`
		} `json:"engines"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil || pkg.Engines.Node == "" {
		return 0, false
	}
	return MajorForConstraint(pkg.Engines.Node)
}

// MajorForConstraint returns the newest major in SupportedMajors that
// satisfies a semver range such as ">=18", "^20.11.0" or "18.x || 20.x".
func MajorForConstraint(expr string) (int, bool) {
	constraint, err := semver.NewConstraint(expr)
	if err != nil {
		return 0, false
	}

	// Probe each supported major at its start, at a late minor, and at any
	// explicit version the range names.
	probes := make(map[int][]*semver.Version)
	for _, major := range SupportedMajors {
		probes[major] = []*semver.Version{
			semver.New(uint64(major), 0, 0, "", ""),
			semver.New(uint64(major), 99, 0, "", ""),
		}
	}
	for _, match := range versionInConstraint.FindAllString(expr, -1) {
		v, err := semver.NewVersion(match)
		if err != nil {
			continue
		}
		major := int(v.Major())
		if _, ok := probes[major]; ok {
			probes[major] = append(probes[major], v)
		}
	}

	for _, major := range SupportedMajors {
		for _, v := range probes[major] {
			if constraint.Check(v) {
				return major, true
			}
		}
	}
	return 0, false
}

// FormatResult formats a DetectResult as a human-readable string.
func FormatResult(result *DetectResult) string {
	signalList := "none"
	if len(result.Signals) > 0 {
		signalList = strings.Join(result.Signals, ", ")
	}
	return fmt.Sprintf("Detected image: %s (signals: %s) - %s",
		result.Image, signalList, result.Rationale)
}
