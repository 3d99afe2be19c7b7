package crm

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jomei/notionapi"
	"go.uber.org/zap"

	"github.com/whassan99/Notion-AI-CRM-Agents/internal/lead"
	"github.com/whassan99/Notion-AI-CRM-Agents/pkg/notion"
)

// Notion property types handled by the store.
const (
	TypeTitle    = "title"
	TypeRichText = "rich_text"
	TypeNumber   = "number"
	TypeSelect   = "select"
	TypeCheckbox = "checkbox"
	TypeDate     = "date"
)

// maxRichTextRunes is Notion's limit for one rich_text block.
const maxRichTextRunes = 2000

// OutputType returns the column type used when bootstrapping field.
func OutputType(field string) string {
	switch field {
	case lead.FieldICPScore, lead.FieldConfidenceScore, lead.FieldResearchSourceCount, lead.FieldDaysSinceContact:
		return TypeNumber
	case lead.FieldPriorityTier, lead.FieldNextAction, lead.FieldResearchConfidence,
		lead.FieldSignalType, lead.FieldSignalStrength, lead.FieldActionConfidence:
		return TypeSelect
	case lead.FieldStaleFlag:
		return TypeCheckbox
	case lead.FieldSignalDate:
		return TypeDate
	default:
		return TypeRichText
	}
}

var selectOptions = map[string][]string{
	lead.FieldPriorityTier:       {lead.TierHigh, lead.TierMedium, lead.TierLow, lead.TierReview},
	lead.FieldNextAction:         {lead.ActionOutreachNow, lead.ActionReengage, lead.ActionNurture, lead.ActionEnrichData, lead.ActionHold},
	lead.FieldResearchConfidence: {lead.ConfidenceHigh, lead.ConfidenceMedium, lead.ConfidenceLow},
	lead.FieldActionConfidence:   {lead.ConfidenceHigh, lead.ConfidenceMedium, lead.ConfidenceLow},
	lead.FieldSignalType:         {"buying_intent", "funding", "leadership_change", "hiring", "technology_initiative", "none"},
	lead.FieldSignalStrength:     {"high", "medium", "low", "none"},
}

func outputPropertyConfig(field string) notionapi.PropertyConfig {
	switch OutputType(field) {
	case TypeNumber:
		return &notionapi.NumberPropertyConfig{
			Type:   notionapi.PropertyConfigTypeNumber,
			Number: notionapi.NumberFormat{Format: notionapi.FormatNumber},
		}
	case TypeSelect:
		opts := make([]notionapi.Option, 0, len(selectOptions[field]))
		for _, name := range selectOptions[field] {
			opts = append(opts, notionapi.Option{Name: name})
		}
		return &notionapi.SelectPropertyConfig{
			Type:   notionapi.PropertyConfigTypeSelect,
			Select: notionapi.Select{Options: opts},
		}
	case TypeCheckbox:
		return &notionapi.CheckboxPropertyConfig{Type: notionapi.PropertyConfigTypeCheckbox}
	case TypeDate:
		return &notionapi.DatePropertyConfig{Type: notionapi.PropertyConfigTypeDate}
	default:
		return &notionapi.RichTextPropertyConfig{Type: notionapi.PropertyConfigTypeRichText}
	}
}

// formatProperties converts canonical fields into page properties typed by
// the database schema.
func (s *Store) formatProperties(pageID string, fields map[string]any, schema map[string]string) notionapi.Properties {
	props := make(notionapi.Properties, len(fields))
	for key, value := range fields {
		column := s.cfg.OutputColumn(key)
		typ, ok := schema[column]
		if !ok {
			zap.L().Debug("crm: column not in schema, skipping",
				zap.String("page_id", pageID), zap.String("field", key), zap.String("column", column))
			continue
		}
		prop, ok := FormatProperty(typ, value)
		if !ok {
			zap.L().Debug("crm: value not writable to column type, skipping",
				zap.String("page_id", pageID), zap.String("column", column), zap.String("type", typ))
			continue
		}
		props[column] = prop
	}
	return props
}

// FormatProperty converts value into a property of the given schema type.
// It reports false when the value cannot be represented. An empty date
// clears the column.
func FormatProperty(typ string, value any) (notionapi.Property, bool) {
	switch typ {
	case TypeNumber:
		n, ok := toNumber(value)
		if !ok {
			return nil, false
		}
		return notionapi.NumberProperty{Type: notionapi.PropertyTypeNumber, Number: n}, true
	case TypeSelect:
		name := strings.TrimSpace(toString(value))
		if name == "" {
			return nil, false
		}
		return notionapi.SelectProperty{Type: notionapi.PropertyTypeSelect, Select: notionapi.Option{Name: name}}, true
	case TypeCheckbox:
		b, ok := toBool(value)
		if !ok {
			return nil, false
		}
		return notionapi.CheckboxProperty{Type: notionapi.PropertyTypeCheckbox, Checkbox: b}, true
	case TypeDate:
		if s, isStr := value.(string); value == nil || isStr && strings.TrimSpace(s) == "" {
			return notionapi.DateProperty{Type: notionapi.PropertyTypeDate}, true
		}
		t, ok := toDate(value)
		if !ok {
			return nil, false
		}
		d := notionapi.Date(t)
		return notionapi.DateProperty{Type: notionapi.PropertyTypeDate, Date: &notionapi.DateObject{Start: &d}}, true
	case TypeTitle:
		return notionapi.TitleProperty{Type: notionapi.PropertyTypeTitle, Title: notion.RichText(clip(toString(value)))}, true
	case TypeRichText:
		return notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: notion.RichText(clip(toString(value)))}, true
	default:
		return nil, false
	}
}

func clip(s string) string {
	if r := []rune(s); len(r) > maxRichTextRunes {
		return string(r[:maxRichTextRunes])
	}
	return s
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []string:
		return strings.Join(t, "\n")
	default:
		return ""
	}
}

func toNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return t, true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func toBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "1":
			return true, true
		case "false", "no", "0", "":
			return false, true
		}
	}
	return false, false
}

func toDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		if d, err := time.Parse(time.DateOnly, s); err == nil {
			return d, true
		}
		if d, err := time.Parse(time.RFC3339, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// extractLead reads the configured input columns and any previous outputs
// from a page.
func (s *Store) extractLead(p *notionapi.Page) lead.Lead {
	cols := s.cfg.Properties
	l := lead.Lead{
		ID:             string(p.ID),
		CompanyName:    strings.TrimSpace(textValue(p.Properties[cols.Company])),
		Website:        strings.TrimSpace(textValue(p.Properties[cols.Website])),
		Notes:          textValue(p.Properties[cols.Notes]),
		LastContacted:  dateValue(p.Properties[cols.LastContacted]),
		Status:         textValue(p.Properties[cols.Status]),
		LastEditedTime: p.LastEditedTime,
	}

	icpProp, hasICP := p.Properties[s.cfg.OutputColumn(lead.FieldICPScore)]
	tierProp, hasTier := p.Properties[s.cfg.OutputColumn(lead.FieldPriorityTier)]
	actionProp, hasAction := p.Properties[s.cfg.OutputColumn(lead.FieldNextAction)]
	if hasICP || hasTier || hasAction {
		l.Existing = &lead.Snapshot{
			ICPScore:     numberValue(icpProp),
			PriorityTier: strings.TrimSpace(textValue(tierProp)),
			NextAction:   strings.TrimSpace(textValue(actionProp)),
		}
	}
	return l
}

// textValue renders text-like properties as a plain string.
func textValue(prop notionapi.Property) string {
	switch p := prop.(type) {
	case *notionapi.TitleProperty:
		return notion.PlainText(p.Title)
	case *notionapi.RichTextProperty:
		return notion.PlainText(p.RichText)
	case *notionapi.URLProperty:
		return p.URL
	case *notionapi.SelectProperty:
		return p.Select.Name
	case *notionapi.StatusProperty:
		return p.Status.Name
	case *notionapi.EmailProperty:
		return p.Email
	default:
		return ""
	}
}

// dateValue renders a date property as YYYY-MM-DD, or RFC3339 when it
// carries a time of day. Text columns are passed through.
func dateValue(prop notionapi.Property) string {
	switch p := prop.(type) {
	case *notionapi.DateProperty:
		if p.Date == nil || p.Date.Start == nil {
			return ""
		}
		t := time.Time(*p.Date.Start)
		if t.IsZero() {
			return ""
		}
		if h, m, sec := t.Clock(); h == 0 && m == 0 && sec == 0 {
			return t.Format(time.DateOnly)
		}
		return t.Format(time.RFC3339)
	default:
		return strings.TrimSpace(textValue(prop))
	}
}

// numberValue reads an ICP score stored as a number or numeric text. Nil means
// absent or non-numeric.
func numberValue(prop notionapi.Property) *int {
	switch p := prop.(type) {
	case *notionapi.NumberProperty:
		return lead.IntPtr(int(math.Round(p.Number)))
	case *notionapi.RichTextProperty, *notionapi.SelectProperty:
		n, err := strconv.ParseFloat(strings.TrimSpace(textValue(prop)), 64)
		if err != nil {
			return nil
		}
		return lead.IntPtr(int(math.Round(n)))
	default:
		return nil
	}
}
