package whisper

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	DefaultModel   = "large-v3-turbo"
	catalogBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"
)

// Model is a catalog entry for a ggml whisper model.
type Model struct {
	Name      string
	FileName  string
	URL       string
	SHA256    string
	SHA256URL string
}

// ResolvedModel is a catalog entry bound to a location on disk, or a
// custom model file given by path.
type ResolvedModel struct {
	Model
	Path          string
	NeedsDownload bool
	IsCustomPath  bool
}

func ggml(name, sha256 string) Model {
	fileName := "ggml-" + name + ".bin"
	return Model{Name: name, FileName: fileName, URL: catalogBaseURL + fileName, SHA256: sha256}
}

// catalog lists the downloadable models from smallest to largest. The turbo
// builds are republished upstream without stable digests, so they carry none.
var catalog = []Model{
	ggml("tiny", "be07e048e1e599ad46341c8d2a135645097a538221678b7acdd1b1919c6e1b21"),
	ggml("base", "60ed5bc3dd14eea856493d334349b405782ddcaf0028d4b5df4088345fba2efe"),
	ggml("small", "1be3a9b2063867b937e64e2ec7483364a79917e157fa98c5d94b5c1fffea987b"),
	ggml("medium", "6c14d5adee5f86394037b4e4e8b59f1673b6cee10e3cf0b11bbdbee79c156208"),
	ggml("large-v3-turbo-q8_0", ""),
	ggml("large-v3-turbo", ""),
	ggml("large-v3", "64d182b440b98d5203c4f9bd541544d84c605196c4f7b845dfa11fb23594d1e2"),
}

// ModelNames returns the catalog names from smallest to largest.
func ModelNames() []string {
	names := make([]string, len(catalog))
	for i, model := range catalog {
		names[i] = model.Name
	}
	return names
}

func LookupModel(name string) (Model, bool) {
	for _, model := range catalog {
		if model.Name == name {
			return model, true
		}
	}
	return Model{}, false
}

// ResolveModel maps a catalog name (empty means DefaultModel) to its file in
// modelDir, or accepts ref as the path of a custom model file.
func ResolveModel(ref, modelDir string) (ResolvedModel, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		ref = DefaultModel
	}

	if model, ok := LookupModel(ref); ok {
		return resolveCatalogModel(model, modelDir)
	}
	if looksLikePath(ref) {
		return resolveCustomModel(ref)
	}
	return ResolvedModel{}, fmt.Errorf("unknown model %q (known models: %s)", ref, strings.Join(ModelNames(), ", "))
}

func resolveCatalogModel(model Model, modelDir string) (ResolvedModel, error) {
	if strings.TrimSpace(modelDir) == "" {
		return ResolvedModel{}, errors.New("model directory must not be empty for named model")
	}

	path := filepath.Join(modelDir, model.FileName)
	_, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return ResolvedModel{Model: model, Path: path, NeedsDownload: true}, nil
	case err != nil:
		return ResolvedModel{}, fmt.Errorf("stat model path: %w", err)
	}
	return ResolvedModel{Model: model, Path: path}, nil
}

func resolveCustomModel(ref string) (ResolvedModel, error) {
	path := filepath.Clean(ref)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ResolvedModel{}, fmt.Errorf("custom model path does not exist: %s", path)
		}
		return ResolvedModel{}, fmt.Errorf("stat custom model path: %w", err)
	}
	return ResolvedModel{Model: Model{Name: filepath.Base(path)}, Path: path, IsCustomPath: true}, nil
}

func looksLikePath(input string) bool {
	return strings.ContainsRune(input, os.PathSeparator) || strings.HasSuffix(strings.ToLower(input), ".bin")
}
