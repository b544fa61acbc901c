package services

import (
	"context"

	"github.com/joshua-takyi/humanfolio/internal/helpers"
	"github.com/joshua-takyi/humanfolio/internal/judge"
)

const DefaultMaxUpload = 10 << 20

// ImageService turns uploads into references that fit inside a document.
type ImageService struct {
	store     helpers.ImageStore
	maxUpload int
}

func NewImageService(store helpers.ImageStore, maxUpload int) *ImageService {
	if store == nil {
		store = helpers.InlineStore{}
	}
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	return &ImageService{store: store, maxUpload: maxUpload}
}

func (is *ImageService) Store() helpers.ImageStore { return is.store }

func (is *ImageService) MaxUpload() int { return is.maxUpload }

func (is *ImageService) Upload(ctx context.Context, data []byte, folder string) (string, error) {
	if len(data) > is.maxUpload {
		return "", ErrImageTooBig
	}
	switch folder {
	case helpers.AvatarFolder, helpers.CoverFolder, helpers.EvidenceFolder:
	default:
		folder = helpers.EvidenceFolder
	}
	return is.store.Store(ctx, data, folder)
}

const maxJudgedRunes = 8000

type JudgeService struct {
	analyzer judge.Analyzer
}

func NewJudgeService(analyzer judge.Analyzer) *JudgeService {
	if analyzer == nil {
		analyzer = judge.StubAnalyzer{}
	}
	return &JudgeService{analyzer: analyzer}
}

// Analyze judges text, truncated to a bounded length.
func (js *JudgeService) Analyze(ctx context.Context, text string) (judge.Verdict, error) {
	runes := []rune(text)
	if len(runes) > maxJudgedRunes {
		text = string(runes[:maxJudgedRunes])
	}
	return js.analyzer.AnalyzeText(ctx, text)
}
