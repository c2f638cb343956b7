package steps

import (
	"github.com/rendis/cog-hubspot/internal/crm"
	"github.com/rendis/cog-hubspot/pkg/schema"
)

const (
	CogName     = "automatoninc/hubspot"
	CogLabel    = "HubSpot"
	CogHomepage = "https://www.hubspot.com"
)

// Manifest describes the cog and every step registered in reg.
func Manifest(reg *Registry, version string) schema.CogManifest {
	return schema.CogManifest{
		Name:       CogName,
		Label:      CogLabel,
		Version:    version,
		Homepage:   CogHomepage,
		AuthFields: crm.AuthFields(),
		Steps:      reg.Definitions(),
	}
}
