// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package report

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/scaleinspect/inspectd/imagestore"
	"github.com/scaleinspect/inspectd/inspection"
	"github.com/scaleinspect/inspectd/inspection/ordered"
	"github.com/scaleinspect/inspectd/report/docxtmpl"
)

// Signature and evidence images embed at fixed pixel sizes.
const (
	signatureWidth  = 180
	signatureHeight = 80
	evidenceWidth   = 300
	evidenceHeight  = 200
)

// hydrate builds the template data object: the nested form under "d" plus a
// dot flattened copy of every path, so the template may address values
// either way.
func (composer *Composer) hydrate(ctx context.Context, record *inspection.Inspection, answer *inspection.Answer) (map[string]interface{}, error) {
	catalogue, err := composer.catalogueFor(ctx, record)
	if err != nil {
		return nil, err
	}

	aggregate := map[string]interface{}{}
	if answer.Answers != nil {
		aggregate = docToMap(answer.Answers)
	}

	d := map[string]interface{}{}
	d["contractor"] = composer.contractor(ctx, record)

	if metadata, ok := aggregate[inspection.KeyMetadata].(map[string]interface{}); ok {
		d["metadata"] = metadata
	} else {
		d["metadata"] = map[string]interface{}{}
	}

	for _, section := range catalogue.Sections() {
		d[section.Key] = composer.sectionData(section, aggregate)
	}

	if remarks, ok := aggregate[inspection.KeyRemarks]; ok {
		d["remarks"] = remarks
	} else {
		d["remarks"] = ""
	}

	d["signatures"] = composer.signatureData(aggregate)

	images, err := composer.db.Images().ListByAnswer(ctx, answer.ID)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	nested, all, has, evidence := composer.imageData(ctx, catalogue, images)
	d["images"] = nested
	d["allImages"] = all
	d["hasImages"] = has
	if evidence != nil {
		d["ftp_image"] = evidence
		d["hasFtpImage"] = true
	} else {
		d["hasFtpImage"] = false
	}

	data := map[string]interface{}{"d": d}
	flatten("d", d, data)
	return data, nil
}

// sectionData emits field -> { status, comment, question } for one content
// section, defaulting every declared field so the template renders cleanly.
func (composer *Composer) sectionData(section inspection.TemplateSection, aggregate map[string]interface{}) map[string]interface{} {
	stored, _ := aggregate[section.Key].(map[string]interface{})

	out := map[string]interface{}{"title": section.Title}
	for _, field := range section.Fields {
		entry := map[string]interface{}{
			"status":   "",
			"comment":  "",
			"question": field.Question,
		}
		if answer, ok := stored[field.ID].(map[string]interface{}); ok {
			for key, value := range answer {
				entry[key] = value
			}
		} else if answer, ok := stored[field.ID]; ok && answer != nil {
			entry["status"] = answer
		}
		out[fieldKeyFor(section.Key, field.ID)] = entry
	}

	// carry unknown extra fields the template may still reference
	for key, value := range stored {
		if _, taken := out[key]; !taken {
			out[key] = value
		}
	}
	return out
}

// signatureData turns stored data-url signatures into embeddable images.
func (composer *Composer) signatureData(aggregate map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	stored, _ := aggregate[inspection.KeySignatures].(map[string]interface{})
	for role, value := range stored {
		dataURL, ok := value.(string)
		if !ok {
			continue
		}
		image, err := composer.imageFromDataURL(dataURL, signatureWidth, signatureHeight)
		if err != nil {
			composer.log.Warn("signature image skipped",
				zap.String("role", role), zap.Error(err))
			continue
		}
		out[role] = image
	}
	return out
}

// imageData builds the per field loop arrays, the flat ordered list, the
// hasImages gates and the optional evidence image. Every declared template
// field gets a default empty array and a false gate.
func (composer *Composer) imageData(ctx context.Context, catalogue *inspection.Catalogue, images []inspection.QuestionImage) (nested map[string]interface{}, all []interface{}, has map[string]interface{}, evidence *docxtmpl.Image) {
	nested = map[string]interface{}{}
	has = map[string]interface{}{}
	for _, section := range catalogue.Sections() {
		fields := map[string]interface{}{}
		gates := map[string]interface{}{}
		for _, field := range section.Fields {
			key := fieldKeyFor(section.Key, field.ID)
			fields[key] = []interface{}{}
			gates[key] = false
		}
		nested[section.Key] = fields
		has[section.Key] = gates
	}

	type group struct {
		section string
		field   string
		items   []inspection.QuestionImage
	}
	var groups []*group
	index := map[string]*group{}
	for _, image := range images {
		key := image.Section + "\x00" + image.FieldID
		g, ok := index[key]
		if !ok {
			g = &group{section: image.Section, field: image.FieldID}
			index[key] = g
			groups = append(groups, g)
		}
		g.items = append(g.items, image)
	}

	for _, g := range groups {
		var records []interface{}
		total := len(g.items)
		for i, item := range g.items {
			loaded, err := composer.imageFromStore(ctx, item.FileName, imagestore.DefaultThumbWidth, imagestore.DefaultThumbHeight)
			if err != nil {
				composer.log.Warn("question image skipped",
					zap.String("file", item.FileName), zap.Error(err))
				continue
			}
			if g.field == "ftp_image" && evidence == nil {
				evidence = composer.resized(loaded, evidenceWidth, evidenceHeight)
			}
			record := map[string]interface{}{
				"image":   loaded,
				"index":   i + 1,
				"total":   total,
				"isFirst": i == 0,
				"isLast":  i == total-1,
			}
			records = append(records, record)
			all = append(all, map[string]interface{}{
				"image":   loaded,
				"section": item.Section,
				"fieldId": item.FieldID,
				"order":   item.ImageOrder,
			})
		}
		if len(records) == 0 {
			continue
		}

		key := fieldKeyFor(g.section, g.field)
		sectionFields, ok := nested[g.section].(map[string]interface{})
		if !ok {
			sectionFields = map[string]interface{}{}
			nested[g.section] = sectionFields
		}
		sectionFields[key] = records

		sectionGates, ok := has[g.section].(map[string]interface{})
		if !ok {
			sectionGates = map[string]interface{}{}
			has[g.section] = sectionGates
		}
		sectionGates[key] = true
	}

	return nested, all, has, evidence
}

// contractor derives the company block from the contract's organization,
// falling back to the inspection's own organization and site.
func (composer *Composer) contractor(ctx context.Context, record *inspection.Inspection) map[string]interface{} {
	out := map[string]interface{}{
		"company":         "",
		"contract_number": "",
		"contact_name":    "",
		"contact_phone":   "",
		"contact_email":   "",
		"site":            "",
	}

	orgID := record.OrganizationID
	if record.ContractID != nil {
		if contract, err := composer.db.Contracts().Get(ctx, *record.ContractID); err == nil {
			out["contract_number"] = contract.Number
			orgID = contract.OrganizationID
		}
	}
	if org, err := composer.db.Organizations().Get(ctx, orgID); err == nil {
		out["company"] = org.Name
		out["contact_name"] = org.ContactName
		out["contact_phone"] = org.ContactPhone
		out["contact_email"] = org.ContactEmail
	}
	if record.SiteID != nil {
		if site, err := composer.db.Sites().Get(ctx, *record.SiteID); err == nil {
			out["site"] = site.Name
		}
	}
	return out
}

// catalogueFor resolves the template catalogue of an inspection.
func (composer *Composer) catalogueFor(ctx context.Context, record *inspection.Inspection) (*inspection.Catalogue, error) {
	if record.TemplateID == nil {
		return inspection.DefaultCatalogue(), nil
	}
	template, err := composer.db.Templates().Get(ctx, *record.TemplateID)
	if err != nil {
		return nil, err
	}
	return template.Catalogue()
}

// docToMap converts an ordered document into plain maps for the template
// engine. Placeholder resolution is path based, so key order no longer
// matters here.
func docToMap(doc *ordered.Doc) map[string]interface{} {
	out := make(map[string]interface{}, doc.Len())
	for _, key := range doc.Keys() {
		value, _ := doc.Get(key)
		out[key] = docValue(value)
	}
	return out
}

func docValue(value interface{}) interface{} {
	switch v := value.(type) {
	case *ordered.Doc:
		return docToMap(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = docValue(item)
		}
		return out
	default:
		return v
	}
}

// flatten mirrors every nested path as a dot joined top level key.
func flatten(prefix string, value interface{}, into map[string]interface{}) {
	m, ok := value.(map[string]interface{})
	if !ok {
		return
	}
	for key, v := range m {
		path := prefix + "." + key
		// keys already containing dots would collide with path syntax
		if strings.Contains(key, ".") {
			continue
		}
		into[path] = v
		flatten(path, v, into)
	}
}
