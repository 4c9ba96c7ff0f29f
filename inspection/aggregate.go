// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package inspection

import (
	"github.com/scaleinspect/inspectd/inspection/ordered"
)

// IsContentSection reports whether the key names a content section rather
// than the remarks or signatures payload.
func IsContentSection(key string) bool {
	return key != KeyRemarks && key != KeySignatures
}

// extractMetadata scrapes the recognized metadata fields from the top level
// of a first-section payload into a metadata document. Scraped keys are
// removed from the payload so they do not appear as field answers. Root
// level remarks and signatures are folded out the same way and returned
// separately.
func extractMetadata(payload *ordered.Doc) (metadata *ordered.Doc, remarks interface{}, signatures *ordered.Doc) {
	metadata = ordered.NewDoc()
	for _, key := range metadataFields {
		if value, ok := payload.Get(key); ok {
			metadata.Set(key, value)
			payload.Delete(key)
		}
	}

	if value, ok := payload.Get(KeyRemarks); ok {
		remarks = value
		payload.Delete(KeyRemarks)
	}

	if value, ok := payload.GetDoc(KeySignatures); ok {
		signatures = value
		payload.Delete(KeySignatures)
	}

	return metadata, remarks, signatures
}

// mergeMetadata merges incoming metadata into the aggregate. Metadata is
// only ever populated from first-section writes and once set the date never
// changes.
func mergeMetadata(aggregate *ordered.Doc, incoming *ordered.Doc) {
	if incoming == nil || incoming.Len() == 0 {
		return
	}

	existing, ok := aggregate.GetDoc(KeyMetadata)
	if !ok {
		aggregate.Set(KeyMetadata, incoming.Clone())
		return
	}

	date, hadDate := existing.Get("date")
	existing.Merge(incoming)
	if hadDate {
		existing.Set("date", date)
	}
}

// mergeRemarks applies the remarks merge rule: matching object types are
// deep merged, otherwise the writer wins, including on type mismatch.
func mergeRemarks(aggregate *ordered.Doc, incoming interface{}) {
	if incoming == nil {
		return
	}

	existing, ok := aggregate.Get(KeyRemarks)
	if !ok {
		aggregate.Set(KeyRemarks, ordered.FromValue(incoming))
		return
	}

	existingDoc, existingIsDoc := existing.(*ordered.Doc)
	incomingDoc, incomingIsDoc := incoming.(*ordered.Doc)
	if existingIsDoc && incomingIsDoc {
		existingDoc.Merge(incomingDoc)
		return
	}

	aggregate.Set(KeyRemarks, ordered.FromValue(incoming))
}

// mergeSignatures deep merges the role to data-url mapping.
func mergeSignatures(aggregate *ordered.Doc, incoming *ordered.Doc) {
	if incoming == nil || incoming.Len() == 0 {
		return
	}

	existing, ok := aggregate.GetDoc(KeySignatures)
	if !ok {
		aggregate.Set(KeySignatures, incoming.Clone())
		return
	}
	existing.Merge(incoming)
}

// mergeSection merges a content section payload into the aggregate under
// its section key and rewrites the field order to the template's declared
// order with unknown extras appended in insertion order.
func mergeSection(aggregate *ordered.Doc, section string, payload *ordered.Doc, catalogue *Catalogue) {
	existing, ok := aggregate.GetDoc(section)
	if !ok {
		existing = ordered.NewDoc()
		aggregate.Set(section, existing)
	}
	existing.Merge(payload)

	if order := catalogue.FieldOrder(section); len(order) > 0 {
		existing.Reorder(order)
	}
}

// extractRemarksPayload reduces a remarks-section payload to the remarks
// value. Writers send either {remarks: ...}, a field wrapper carrying a
// comment, or the value itself.
func extractRemarksPayload(payload *ordered.Doc) interface{} {
	if value, ok := payload.Get(KeyRemarks); ok {
		return value
	}

	for _, key := range payload.Keys() {
		value, _ := payload.Get(key)
		if doc, ok := value.(*ordered.Doc); ok {
			if comment, ok := doc.Get("comment"); ok {
				return comment
			}
		}
	}

	if len(payload.Keys()) == 1 {
		value, _ := payload.Get(payload.Keys()[0])
		if _, isDoc := value.(*ordered.Doc); !isDoc {
			return value
		}
	}

	return payload
}

// extractSignaturesPayload reduces a signatures-section payload to the role
// to data-url mapping.
func extractSignaturesPayload(payload *ordered.Doc) *ordered.Doc {
	if doc, ok := payload.GetDoc(KeySignatures); ok {
		return doc
	}
	return payload
}

// collapse deep merges every answer row (already sorted by answeredAt
// ascending) into a single aggregate: earliest non-empty metadata wins,
// remarks follow the writer-wins rule and signatures deep merge. Section
// keys are rewritten to metadata, template order, remarks, signatures.
func collapse(rows []Answer, catalogue *Catalogue) *ordered.Doc {
	aggregate := ordered.NewDoc()

	for _, row := range rows {
		if row.Answers == nil {
			continue
		}
		for _, key := range row.Answers.Keys() {
			value, _ := row.Answers.Get(key)
			switch key {
			case KeyMetadata:
				if doc, ok := value.(*ordered.Doc); ok && doc.Len() > 0 {
					if _, has := aggregate.GetDoc(KeyMetadata); !has {
						aggregate.Set(KeyMetadata, doc.Clone())
					}
				}
			case KeyRemarks:
				mergeRemarks(aggregate, value)
			case KeySignatures:
				if doc, ok := value.(*ordered.Doc); ok {
					mergeSignatures(aggregate, doc)
				}
			default:
				if doc, ok := value.(*ordered.Doc); ok {
					mergeSection(aggregate, key, doc, catalogue)
				} else {
					aggregate.Set(key, ordered.FromValue(value))
				}
			}
		}
	}

	order := append([]string{KeyMetadata}, catalogue.SectionKeys()...)
	order = append(order, KeyRemarks, KeySignatures)
	aggregate.Reorder(order)

	return aggregate
}

// probeMainRow locates the primary answer row among transient rows: the
// first row carrying a data field, then the first containing a known
// content section, then the first with metadata, then any row.
func probeMainRow(rows []Answer, catalogue *Catalogue) *Answer {
	if len(rows) == 0 {
		return nil
	}

	for i := range rows {
		if rows[i].Answers.Has(KeyData) {
			return &rows[i]
		}
	}

	known := map[string]bool{}
	for _, key := range catalogue.SectionKeys() {
		known[key] = true
	}
	for _, key := range []string{"jbox", "sensor", "exterior", "indicator", "foundation", "cleanliness"} {
		known[key] = true
	}
	for i := range rows {
		for _, key := range rows[i].Answers.Keys() {
			if known[key] {
				return &rows[i]
			}
		}
	}

	for i := range rows {
		if rows[i].Answers.Has(KeyMetadata) {
			return &rows[i]
		}
	}

	return &rows[0]
}
