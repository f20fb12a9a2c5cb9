package actions

import "github.com/codeready-toolchain/autoappdev/pkg/apperr"

// ValidateCreate normalizes a brand-new action definition's title and
// spec. There is no base spec on create — patch is merged onto an
// empty map so only patch's allowed keys survive.
func ValidateCreate(title string, kind Kind, specPatch map[string]any, repoRoot string, defaults Defaults) (string, map[string]any, error) {
	if err := ValidateTitle(title, true); err != nil {
		return "", nil, err
	}
	spec, err := NormalizeSpec(kind, nil, specPatch, repoRoot, defaults)
	if err != nil {
		return "", nil, err
	}
	return title, spec, nil
}

// ValidateUpdate normalizes a partial update against an existing
// definition: kind changes are rejected outright, an empty title
// preserves the existing one, and the spec patch is merged onto the
// existing spec.
func ValidateUpdate(existing Definition, titlePatch *string, kindPatch *Kind, specPatch map[string]any, repoRoot string, defaults Defaults) (string, map[string]any, error) {
	if kindPatch != nil && *kindPatch != existing.Kind {
		return "", nil, apperr.New(apperr.CodeKindChangeForbidden)
	}

	title := existing.Title
	if titlePatch != nil {
		if err := ValidateTitle(*titlePatch, false); err != nil {
			return "", nil, err
		}
		if *titlePatch != "" {
			title = *titlePatch
		}
	}

	spec, err := NormalizeSpec(existing.Kind, existing.Spec, specPatch, repoRoot, defaults)
	if err != nil {
		return "", nil, err
	}
	return title, spec, nil
}

// Clone builds the title/kind/spec for a cloned copy of an existing
// definition (spec §8 property 10: "clone creates a new persisted
// action with the same kind and spec"). The caller is responsible for
// persisting it under a fresh, non-built-in ID.
func Clone(existing Definition) (title string, kind Kind, spec map[string]any) {
	cloned := make(map[string]any, len(existing.Spec))
	for k, v := range existing.Spec {
		cloned[k] = v
	}
	return existing.Title + " (copy)", existing.Kind, cloned
}
