package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainSchema prefixes schema hashes. The version suffix allows a future
// algorithm change without colliding with old journals.
const DomainSchema = "derive/schema/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SchemaHash computes a content hash of compiled models. Journals stamp
// every batch with it so traces from different schemas are distinguishable.
func SchemaHash(models []ModelSpec) (string, error) {
	arr := make(IRArray, 0, len(models))
	for _, m := range models {
		arr = append(arr, modelToIR(m))
	}
	canonical, err := MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("SchemaHash: %w", err)
	}
	return hashWithDomain(DomainSchema, canonical), nil
}

func modelToIR(m ModelSpec) IRObject {
	attrs := IRArray{}
	for _, a := range m.Attrs {
		attrs = append(attrs, IRObject{"name": IRString(a.Name), "kind": IRString(a.Kind)})
	}
	rels := IRArray{}
	for _, r := range m.Relationships {
		rels = append(rels, IRObject{
			"name":    IRString(r.Name),
			"kind":    IRString(r.Kind),
			"target":  IRString(r.Target),
			"inverse": IRString(r.Inverse),
		})
	}
	computed := IRArray{}
	for _, c := range m.Computed {
		deps := IRArray{}
		for _, d := range c.DependsOn {
			deps = append(deps, IRString(d))
		}
		computed = append(computed, IRObject{
			"name":       IRString(c.Name),
			"depends_on": deps,
			"fn":         IRString(c.Fn),
		})
	}
	return IRObject{
		"name":          IRString(m.Name),
		"attrs":         attrs,
		"relationships": rels,
		"computed":      computed,
	}
}
