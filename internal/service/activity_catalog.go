package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/suitec-go-api/internal/apierr"
	"github.com/noah-isme/suitec-go-api/internal/models"
)

// ActivityDefinition describes one activity type: its default points, the object it targets and
// how it relates to the interaction that produced it.
type ActivityDefinition struct {
	Type          models.ActivityType
	Title         string
	DefaultPoints int
	ObjectType    models.ObjectType
	// ReciprocalOf names the actor-side type a recipient type answers. Empty for actor types.
	ReciprocalOf models.ActivityType
	// ImpactCredit marks actor-side interactions that count toward an asset's scores.
	ImpactCredit bool
	// EntryKeyed types add metadata.entryId to the identity key.
	EntryKeyed bool
	schema     string
}

const (
	assetMetadataSchema = `{
  "type": "object",
  "properties": {
    "assetId": {"type": "integer", "minimum": 1}
  },
  "required": ["assetId"]
}`
	entryMetadataSchema = `{
  "type": "object",
  "properties": {
    "entryId": {"type": ["integer", "string"]},
    "parentEntryId": {"type": ["integer", "string", "null"]}
  },
  "required": ["entryId"]
}`
	submissionMetadataSchema = `{
  "type": "object",
  "properties": {
    "assignmentId": {"type": "integer"},
    "submissionId": {"type": "integer"},
    "attempt": {"type": "integer", "minimum": 0},
    "syncEnabled": {"type": "boolean"},
    "assetIds": {"type": "array", "items": {"type": "integer"}}
  },
  "required": ["assignmentId", "submissionId", "attempt"]
}`
)

var catalogDefinitions = []ActivityDefinition{
	{Type: models.ActivityAddAsset, Title: "Add a new asset to the Asset Library", DefaultPoints: 5, ObjectType: models.ObjectAsset},
	{Type: models.ActivityExportWhiteboard, Title: "Export a whiteboard to the Asset Library", DefaultPoints: 10, ObjectType: models.ObjectAsset},
	{Type: models.ActivityViewAsset, Title: "View an asset in the Asset Library", DefaultPoints: 0, ObjectType: models.ObjectAsset, ImpactCredit: true},
	{Type: models.ActivityGetViewAsset, Title: "Receive a view in the Asset Library", DefaultPoints: 0, ObjectType: models.ObjectAsset, ReciprocalOf: models.ActivityViewAsset},
	{Type: models.ActivityLike, Title: "Like an asset in the Asset Library", DefaultPoints: 1, ObjectType: models.ObjectAsset, ImpactCredit: true},
	{Type: models.ActivityGetLike, Title: "Receive a like in the Asset Library", DefaultPoints: 1, ObjectType: models.ObjectAsset, ReciprocalOf: models.ActivityLike},
	{Type: models.ActivityDislike, Title: "Dislike an asset in the Asset Library", DefaultPoints: 0, ObjectType: models.ObjectAsset, ImpactCredit: true},
	{Type: models.ActivityGetDislike, Title: "Receive a dislike in the Asset Library", DefaultPoints: 0, ObjectType: models.ObjectAsset, ReciprocalOf: models.ActivityDislike},
	{Type: models.ActivityAssetComment, Title: "Comment on an asset in the Asset Library", DefaultPoints: 3, ObjectType: models.ObjectComment, ImpactCredit: true, schema: assetMetadataSchema},
	{Type: models.ActivityGetAssetComment, Title: "Receive a comment in the Asset Library", DefaultPoints: 1, ObjectType: models.ObjectComment, ReciprocalOf: models.ActivityAssetComment, schema: assetMetadataSchema},
	{Type: models.ActivityGetAssetCommentReply, Title: "Receive a reply on a comment in the Asset Library", DefaultPoints: 1, ObjectType: models.ObjectComment, ReciprocalOf: models.ActivityAssetComment, schema: assetMetadataSchema},
	{Type: models.ActivityPinAsset, Title: "Pin an asset for later use", DefaultPoints: 1, ObjectType: models.ObjectAsset, ImpactCredit: true},
	{Type: models.ActivityGetPinAsset, Title: "Have one of your assets pinned", DefaultPoints: 1, ObjectType: models.ObjectAsset, ReciprocalOf: models.ActivityPinAsset},
	{Type: models.ActivityRepinAsset, Title: "Pin an asset again after unpinning it", DefaultPoints: 1, ObjectType: models.ObjectAsset, ImpactCredit: true},
	{Type: models.ActivityGetRepinAsset, Title: "Have one of your assets pinned again", DefaultPoints: 1, ObjectType: models.ObjectAsset, ReciprocalOf: models.ActivityRepinAsset},
	{Type: models.ActivityRemixWhiteboard, Title: "Remix a whiteboard", DefaultPoints: 0, ObjectType: models.ObjectAsset, ImpactCredit: true},
	{Type: models.ActivityGetRemixWhiteboard, Title: "Have one of your whiteboards remixed", DefaultPoints: 1, ObjectType: models.ObjectAsset, ReciprocalOf: models.ActivityRemixWhiteboard},
	{Type: models.ActivitySubmitAssignment, Title: "Submit a new assignment in Assignments", DefaultPoints: 20, ObjectType: models.ObjectCanvasSubmission, schema: submissionMetadataSchema},
	{Type: models.ActivityDiscussionTopic, Title: "Add a new topic in Discussions", DefaultPoints: 5, ObjectType: models.ObjectCanvasDiscussion},
	{Type: models.ActivityDiscussionEntry, Title: "Add an entry on a topic in Discussions", DefaultPoints: 3, ObjectType: models.ObjectCanvasDiscussion, EntryKeyed: true, schema: entryMetadataSchema},
	{Type: models.ActivityGetDiscussionEntryReply, Title: "Receive a reply on an entry in Discussions", DefaultPoints: 1, ObjectType: models.ObjectCanvasDiscussion, ReciprocalOf: models.ActivityDiscussionEntry, EntryKeyed: true, schema: entryMetadataSchema},
}

// ActivityCatalog is the immutable table of known activity types.
type ActivityCatalog struct {
	order       []models.ActivityType
	definitions map[models.ActivityType]ActivityDefinition
	schemas     map[models.ActivityType]*jsonschema.Schema
}

var (
	defaultCatalogOnce sync.Once
	defaultCatalog     *ActivityCatalog
)

// DefaultActivityCatalog returns the shared catalog of built-in activity types.
func DefaultActivityCatalog() *ActivityCatalog {
	defaultCatalogOnce.Do(func() {
		catalog, err := NewActivityCatalog(catalogDefinitions)
		if err != nil {
			panic(err)
		}
		defaultCatalog = catalog
	})
	return defaultCatalog
}

// NewActivityCatalog builds a catalog and compiles each definition's metadata schema.
func NewActivityCatalog(definitions []ActivityDefinition) (*ActivityCatalog, error) {
	catalog := &ActivityCatalog{
		order:       make([]models.ActivityType, 0, len(definitions)),
		definitions: make(map[models.ActivityType]ActivityDefinition, len(definitions)),
		schemas:     make(map[models.ActivityType]*jsonschema.Schema),
	}

	for _, definition := range definitions {
		if _, exists := catalog.definitions[definition.Type]; exists {
			return nil, fmt.Errorf("duplicate activity type %q", definition.Type)
		}
		catalog.order = append(catalog.order, definition.Type)
		catalog.definitions[definition.Type] = definition

		if definition.schema == "" {
			continue
		}
		url := "mem://activity/" + string(definition.Type) + ".json"
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(url, strings.NewReader(definition.schema)); err != nil {
			return nil, fmt.Errorf("load %s metadata schema: %w", definition.Type, err)
		}
		schema, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile %s metadata schema: %w", definition.Type, err)
		}
		catalog.schemas[definition.Type] = schema
	}

	return catalog, nil
}

// Types lists the known types in catalog order.
func (c *ActivityCatalog) Types() []models.ActivityType {
	return append([]models.ActivityType(nil), c.order...)
}

// Lookup returns the definition for t.
func (c *ActivityCatalog) Lookup(t models.ActivityType) (ActivityDefinition, bool) {
	definition, ok := c.definitions[t]
	return definition, ok
}

// Require returns the definition for t or a validation error for unknown types.
func (c *ActivityCatalog) Require(t models.ActivityType) (ActivityDefinition, error) {
	definition, ok := c.definitions[t]
	if !ok {
		return ActivityDefinition{}, apierr.Validation("unknown activity type %q", t)
	}
	return definition, nil
}

// ImpactTypes lists the types counted toward asset impact and trending scores.
func (c *ActivityCatalog) ImpactTypes() []models.ActivityType {
	types := make([]models.ActivityType, 0)
	for _, t := range c.order {
		if c.definitions[t].ImpactCredit {
			types = append(types, t)
		}
	}
	return types
}

// ValidateMetadata checks metadata against the type's schema, if it has one.
func (c *ActivityCatalog) ValidateMetadata(t models.ActivityType, metadata map[string]interface{}) error {
	schema, ok := c.schemas[t]
	if !ok {
		return nil
	}

	var document interface{} = map[string]interface{}{}
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return apierr.Validation("metadata for %s is not serialisable: %v", t, err)
		}
		decoder := json.NewDecoder(bytes.NewReader(raw))
		decoder.UseNumber()
		if err := decoder.Decode(&document); err != nil {
			return apierr.Validation("metadata for %s is not serialisable: %v", t, err)
		}
	}

	if err := schema.Validate(document); err != nil {
		return apierr.Validation("invalid metadata for %s: %v", t, err)
	}
	return nil
}

// EntryKey derives the identity suffix for entry-keyed types from metadata.entryId.
func (c *ActivityCatalog) EntryKey(t models.ActivityType, metadata map[string]interface{}) (string, error) {
	definition, ok := c.definitions[t]
	if !ok || !definition.EntryKeyed {
		return "", nil
	}

	switch value := metadata["entryId"].(type) {
	case string:
		if value != "" {
			return value, nil
		}
	case int:
		return strconv.Itoa(value), nil
	case int64:
		return strconv.FormatInt(value, 10), nil
	case uint:
		return strconv.FormatUint(uint64(value), 10), nil
	case float64:
		return strconv.FormatInt(int64(value), 10), nil
	case json.Number:
		return value.String(), nil
	}
	return "", apierr.Validation("%s requires metadata.entryId", t)
}
