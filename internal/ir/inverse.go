package ir

// InferInverses returns a copy of models with omitted inverses filled in.
//
// A relationship without an explicit inverse is paired with the single
// relationship on its target model that points back at the owner model,
// provided the pairing is mutual. When there is no candidate, or more than
// one, the relationship is marked NoInverse. Explicit inverses (including
// NoInverse) are left untouched.
func InferInverses(models []ModelSpec) []ModelSpec {
	out := make([]ModelSpec, len(models))
	byName := make(map[string]int, len(models))
	for i, m := range models {
		out[i] = m
		out[i].Relationships = append([]RelationshipSpec(nil), m.Relationships...)
		byName[m.Name] = i
	}

	for i := range out {
		owner := &out[i]
		for j := range owner.Relationships {
			rel := &owner.Relationships[j]
			if rel.Inverse != "" {
				continue
			}
			ti, ok := byName[rel.Target]
			if !ok {
				rel.Inverse = NoInverse
				continue
			}
			rel.Inverse = mutualInverse(models[i], *rel, models[ti])
		}
	}
	return out
}

func mutualInverse(owner ModelSpec, rel RelationshipSpec, target ModelSpec) string {
	cand := inverseCandidate(owner.Name, rel.Name, target)
	if cand == NoInverse {
		return NoInverse
	}
	back, _ := target.Relationship(cand)
	if back.Inverse == rel.Name {
		return cand
	}
	if back.Inverse == "" && inverseCandidate(target.Name, back.Name, owner) == rel.Name {
		return cand
	}
	return NoInverse
}

// inverseCandidate scans the target's original declarations, so that an
// inverse inferred earlier in the loop cannot influence a later inference.
func inverseCandidate(owner, relName string, target ModelSpec) string {
	var found []string
	for _, cand := range target.Relationships {
		if cand.Target != owner {
			continue
		}
		if target.Name == owner && cand.Name == relName {
			continue
		}
		if cand.Inverse != "" && cand.Inverse != relName {
			continue
		}
		found = append(found, cand.Name)
	}
	if len(found) != 1 {
		return NoInverse
	}
	return found[0]
}
