package model

// Kind tags how a canonical URL was chosen.
type Kind string

const (
	// KindFull is an explicit full-size URL from the source.
	KindFull Kind = "full"

	// KindInferredFull is a full-size URL synthesized from a thumbnail.
	KindInferredFull Kind = "inferred_full"

	// KindThumb is the thumbnail itself.
	KindThumb Kind = "thumb"

	// KindLocal is a file:// candidate. It is never fetched and always
	// reported in the failure ledger.
	KindLocal Kind = "local"

	// KindNone means the occurrence carried no candidate URL at all.
	KindNone Kind = "none"
)

// Fetchable reports whether selections of this kind enter the worklist.
func (k Kind) Fetchable() bool {
	switch k {
	case KindFull, KindInferredFull, KindThumb:
		return true
	default:
		return false
	}
}

// ParseKind converts a record value into a Kind. Unknown values map to KindNone.
func ParseKind(s string) Kind {
	switch Kind(s) {
	case KindFull, KindInferredFull, KindThumb, KindLocal:
		return Kind(s)
	default:
		return KindNone
	}
}

// Selection is the resolved canonical URL of one occurrence.
type Selection struct {
	// Occurrence is the source record, kept so the expander can reach every
	// raw URL field.
	Occurrence Occurrence

	// InferredFullURL is the inferred candidate actually considered: the
	// record's own value, or the synthesized one.
	InferredFullURL string

	// URL is the chosen URL. Empty when Kind is KindNone.
	URL string

	// Kind records which candidate won.
	Kind Kind
}

// Variant names one raw URL field of an occurrence.
type Variant string

const (
	VariantThumb        Variant = "thumb"
	VariantFull         Variant = "full"
	VariantInferredFull Variant = "inferred_full"
	VariantChosen       Variant = "chosen"
)

// VariantURL pairs a raw URL with the field it came from.
type VariantURL struct {
	Variant Variant
	URL     string
}

// Variants returns the non-empty raw URL fields of the selection in fixed
// order: thumb, full, inferred_full, chosen.
func (s Selection) Variants() []VariantURL {
	candidates := []VariantURL{
		{Variant: VariantThumb, URL: s.Occurrence.ThumbURL},
		{Variant: VariantFull, URL: s.Occurrence.FullURL},
		{Variant: VariantInferredFull, URL: s.InferredFullURL},
		{Variant: VariantChosen, URL: s.URL},
	}

	variants := make([]VariantURL, 0, len(candidates))
	for _, c := range candidates {
		if c.URL != "" {
			variants = append(variants, c)
		}
	}
	return variants
}
