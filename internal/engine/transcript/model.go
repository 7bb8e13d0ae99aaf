package transcript

import (
	"fmt"
	"strings"
)

// ModelSize selects a speech recognition model. Larger sizes are slower and more accurate.
type ModelSize string

const (
	ModelTiny   ModelSize = "tiny"
	ModelBase   ModelSize = "base"
	ModelSmall  ModelSize = "small"
	ModelMedium ModelSize = "medium"

	DefaultModel = ModelBase
)

// ModelInfo describes one selectable model size.
type ModelInfo struct {
	Size        ModelSize `json:"size"`
	Name        string    `json:"name"`
	Speed       string    `json:"speed"`
	Accuracy    string    `json:"accuracy"`
	SizeLabel   string    `json:"size_label"`
	FileName    string    `json:"file_name"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
}

const ggmlBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

var modelCatalog = []ModelInfo{
	{
		Size:        ModelTiny,
		Name:        "Tiny",
		Speed:       "fastest",
		Accuracy:    "basic",
		SizeLabel:   "~75 MB",
		FileName:    "ggml-tiny.bin",
		URL:         ggmlBaseURL + "ggml-tiny.bin",
		Description: "Fastest multilingual model, good for quick drafts.",
	},
	{
		Size:        ModelBase,
		Name:        "Base",
		Speed:       "fast",
		Accuracy:    "good",
		SizeLabel:   "~142 MB",
		FileName:    "ggml-base.bin",
		URL:         ggmlBaseURL + "ggml-base.bin",
		Description: "Balanced speed and quality. Default.",
	},
	{
		Size:        ModelSmall,
		Name:        "Small",
		Speed:       "medium",
		Accuracy:    "better",
		SizeLabel:   "~466 MB",
		FileName:    "ggml-small.bin",
		URL:         ggmlBaseURL + "ggml-small.bin",
		Description: "Higher quality, noticeably slower on CPU.",
	},
	{
		Size:        ModelMedium,
		Name:        "Medium",
		Speed:       "slow",
		Accuracy:    "best",
		SizeLabel:   "~1.5 GB",
		FileName:    "ggml-medium.bin",
		URL:         ggmlBaseURL + "ggml-medium.bin",
		Description: "Best accuracy of the offered sizes. Needs a GPU for long videos.",
	},
}

// Models returns the capability table, smallest first.
func Models() []ModelInfo {
	out := make([]ModelInfo, len(modelCatalog))
	copy(out, modelCatalog)
	return out
}

// Info returns the catalog entry for m.
func (m ModelSize) Info() (ModelInfo, bool) {
	for _, info := range modelCatalog {
		if info.Size == m {
			return info, true
		}
	}
	return ModelInfo{}, false
}

// Valid reports whether m is one of the offered sizes.
func (m ModelSize) Valid() bool {
	_, ok := m.Info()
	return ok
}

func (m ModelSize) String() string { return string(m) }

// ParseModelSize normalises s. Empty selects DefaultModel.
func ParseModelSize(s string) (ModelSize, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultModel, nil
	}
	m := ModelSize(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q (want tiny, base, small or medium)", ErrInvalidModel, s)
	}
	return m, nil
}
