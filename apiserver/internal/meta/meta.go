package meta

// APIVersion represents the API and major version thereof with which this
// version of the identity API server is compatible.
const APIVersion = "identity.krancour.github.com/v1"

// TypeMeta represents metadata about a resource type to help clients and
// servers mutually head off potential confusion over types (and versions of
// thereof) sent over the wire.
type TypeMeta struct {
	// Kind specifies the type of a serialized resource.
	Kind string `json:"kind,omitempty"`
	// APIVersion specifies the major version of the identity API with which the
	// client or server having serialized the resource is compatible.
	APIVersion string `json:"apiVersion,omitempty"`
}

// ListMeta is metadata for ordered collections of resources.
type ListMeta struct {
	// Count is the number of items in the collection.
	Count int `json:"count"`
}
