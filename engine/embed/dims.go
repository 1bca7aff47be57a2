package embed

// knownDimensions lists the native output size of common embedding models.
var knownDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
}

// KnownDimension reports the native dimension of a model, if known.
func KnownDimension(model string) (int, bool) {
	d, ok := knownDimensions[model]
	return d, ok
}
