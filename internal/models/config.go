package models

import "runtime/debug"

// BuildProperties describes the running binary.
type BuildProperties struct {
	Module    string `json:"module"`
	Version   string `json:"version"`
	GoVersion string `json:"goVersion"`
	Revision  string `json:"vcs.revision,omitempty"`
	Modified  string `json:"vcs.modified,omitempty"`
}

// CurrentBuild reads the build information embedded by the Go toolchain.
func CurrentBuild() BuildProperties {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return BuildProperties{Version: "unknown"}
	}
	props := BuildProperties{
		Module:    info.Main.Path,
		Version:   info.Main.Version,
		GoVersion: info.GoVersion,
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			props.Revision = s.Value
		case "vcs.modified":
			props.Modified = s.Value
		}
	}
	return props
}

// ConfigModel is the secret-free view of the running configuration.
type ConfigModel struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Env                string          `json:"env"`
	Build              BuildProperties `json:"buildProperties"`
	Routes             int             `json:"routes"`
	LEDs               int             `json:"leds"`
	Universe           int             `json:"universe"`
	Destination        string          `json:"destination"`
	FPS                int             `json:"fps"`
	DimRatio           float64         `json:"dimRatio"`
	FadeTime           float64         `json:"fadeTime"`
	RegularInterval    float64         `json:"regularInterval"`
	RealtimeInterval   float64         `json:"realtimeInterval"`
	AlertInterval      float64         `json:"alertInterval"`
	AlertRoutes        []string        `json:"alertRoutes"`
	BrightnessFeedback bool            `json:"brightnessFeedback"`
}
