package kms

import (
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp/kms"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp/projects"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/GregMSThompson/dashboard-backend/infra/provider"
)

const (
	keyRingName = "dashboard"
	keyName     = "dashboard-values"
	// 90 days
	rotationPeriod = "7776000s"
)

// SetupValueKey creates the key that seals every stored dashboard value.
// Old key versions stay enabled after rotation so existing values still open.
func SetupValueKey(ctx *pulumi.Context, prov *gcp.Provider, s provider.Settings) (*kms.CryptoKey, error) {
	api, err := projects.NewService(ctx, "kmsService", &projects.ServiceArgs{
		Service: pulumi.String("cloudkms.googleapis.com"),
	}, pulumi.Provider(prov))
	if err != nil {
		return nil, err
	}

	ring, err := kms.NewKeyRing(ctx, "dashboardKeyRing", &kms.KeyRingArgs{
		Location: pulumi.String(s.Region),
		Name:     pulumi.String(keyRingName),
	},
		pulumi.Provider(prov),
		pulumi.DependsOn([]pulumi.Resource{api}),
	)
	if err != nil {
		return nil, err
	}

	return kms.NewCryptoKey(ctx, "dashboardValueKey", &kms.CryptoKeyArgs{
		KeyRing:        ring.ID(),
		Name:           pulumi.String(keyName),
		Purpose:        pulumi.String("ENCRYPT_DECRYPT"),
		RotationPeriod: pulumi.String(rotationPeriod),
	},
		pulumi.Provider(prov),
		pulumi.Protect(true),
	)
}

// GrantSealing lets member encrypt and decrypt with key.
func GrantSealing(ctx *pulumi.Context, prov *gcp.Provider, key *kms.CryptoKey, member pulumi.StringInput) error {
	_, err := kms.NewCryptoKeyIAMMember(ctx, "dashboardValueKeyUser", &kms.CryptoKeyIAMMemberArgs{
		CryptoKeyId: key.ID(),
		Role:        pulumi.String("roles/cloudkms.cryptoKeyEncrypterDecrypter"),
		Member:      member,
	},
		pulumi.Provider(prov),
	)
	return err
}
