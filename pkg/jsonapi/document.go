package jsonapi

// NewResourceDocument wraps a single resource.
func NewResourceDocument(r Resource) Document {
	return Document{Data: r, JSONAPI: &JSONAPI{Version: Version}}
}

// NewCollectionDocument wraps a collection. A nil slice is encoded as an
// empty array, never as a missing member.
func NewCollectionDocument(resources []Resource, meta Meta) Document {
	if resources == nil {
		resources = []Resource{}
	}
	return Document{Data: resources, Meta: meta, JSONAPI: &JSONAPI{Version: Version}}
}

// NewMetaDocument carries only metadata.
func NewMetaDocument(meta Meta) Document {
	return Document{Meta: meta, JSONAPI: &JSONAPI{Version: Version}}
}

// NewErrorDocument wraps errors.
func NewErrorDocument(errors ...Error) Document {
	return Document{Errors: errors, JSONAPI: &JSONAPI{Version: Version}}
}
