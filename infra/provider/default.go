package provider

import (
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"
)

// Settings are the stack values every component reads.
type Settings struct {
	ProjectID string
	Region    string
	// AuthMode is "firebase" (namespace from ID token) or "header".
	AuthMode  string
	Namespace string
	LogLevel  string
}

func LoadSettings(ctx *pulumi.Context) Settings {
	gcpCfg := config.New(ctx, "gcp")
	dashCfg := config.New(ctx, "dashboard")

	s := Settings{
		ProjectID: gcpCfg.Require("project"),
		Region:    gcpCfg.Require("region"),
		AuthMode:  dashCfg.Get("authMode"),
		Namespace: dashCfg.Get("namespace"),
		LogLevel:  dashCfg.Get("logLevel"),
	}
	if s.AuthMode == "" {
		s.AuthMode = "firebase"
	}
	if s.Namespace == "" {
		s.Namespace = "home"
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	return s
}

func SetupDefaultProvider(ctx *pulumi.Context, s Settings) (*gcp.Provider, error) {
	return gcp.NewProvider(ctx, "gcpProvider", &gcp.ProviderArgs{
		Project:             pulumi.String(s.ProjectID),
		Region:              pulumi.String(s.Region),
		UserProjectOverride: pulumi.Bool(true),
	})
}
