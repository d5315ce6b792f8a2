package layout

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/cardmill/invoicecard/internal/card"
	"github.com/cardmill/invoicecard/internal/config"
	"github.com/cardmill/invoicecard/internal/onnx"
	"github.com/cardmill/invoicecard/internal/utils"
	"github.com/yalue/onnxruntime_go"
)

// rawLabel is the pretrained layout model's own label space, before it is
// remapped into the invoice-specific BlockType set.
type rawLabel int

const (
	rawText rawLabel = iota
	rawTitle
	rawList
	rawTable
	rawFigure
	rawCaption
)

// remapBlockType maps the pretrained model's label space onto the
// invoice-specific block set: Text|Title -> header, List|Table -> table,
// Figure|Caption -> footer, everything else -> body.
func remapBlockType(label rawLabel) card.BlockType {
	switch label {
	case rawText, rawTitle:
		return card.BlockHeader
	case rawList, rawTable:
		return card.BlockTable
	case rawFigure, rawCaption:
		return card.BlockFooter
	default:
		return card.BlockBody
	}
}

// primary wraps a pretrained document-layout ONNX model whose output is a
// per-class probability map, one channel per rawLabel. The session setup
// follows internal/detector.NewDetector's validate-then-create sequence.
type primary struct {
	session     *onnxruntime_go.DynamicAdvancedSession
	inputInfo   onnxruntime_go.InputOutputInfo
	outputInfo  onnxruntime_go.InputOutputInfo
	constraints utils.ImageConstraints
	cfg         config.LayoutConfig
	mu          sync.RWMutex
}

func newPrimary(cfg config.LayoutConfig) (*primary, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("layout: model path not configured")
	}
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("layout: model file not found: %s", cfg.ModelPath)
	}

	if err := onnx.SetONNXLibraryPath(false); err != nil {
		return nil, fmt.Errorf("layout: failed to set onnx library path: %w", err)
	}
	if !onnxruntime_go.IsInitialized() {
		if err := onnxruntime_go.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("layout: failed to initialize onnx runtime: %w", err)
		}
	}

	inputs, outputs, err := onnxruntime_go.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("layout: failed to read model info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("layout: expected 1 input and 1 output, got %d/%d", len(inputs), len(outputs))
	}
	inputInfo, outputInfo := inputs[0], outputs[0]
	if len(inputInfo.Dimensions) != 4 || len(outputInfo.Dimensions) != 4 {
		return nil, errors.New("layout: expected 4D input/output tensors")
	}

	sessionOptions, err := onnxruntime_go.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("layout: failed to create session options: %w", err)
	}
	defer func() { _ = sessionOptions.Destroy() }()
	if cfg.NumThreads > 0 {
		if err := sessionOptions.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			return nil, fmt.Errorf("layout: failed to set thread count: %w", err)
		}
	}

	session, err := onnxruntime_go.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{inputInfo.Name}, []string{outputInfo.Name}, sessionOptions)
	if err != nil {
		return nil, fmt.Errorf("layout: failed to create onnx session: %w", err)
	}

	maxSize := cfg.MaxImageSize
	if maxSize <= 0 {
		maxSize = 960
	}

	return &primary{
		session:     session,
		inputInfo:   inputInfo,
		outputInfo:  outputInfo,
		constraints: utils.ImageConstraints{MaxWidth: maxSize, MaxHeight: maxSize, MinWidth: 32, MinHeight: 32},
		cfg:         cfg,
	}, nil
}

func (p *primary) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return nil
	}
	err := p.session.Destroy()
	p.session = nil
	return err
}

// detect runs the ONNX model and returns one LayoutBlock per connected
// region surviving DbBoxThresh in any class channel, remapped from the
// model's native label space into the invoice block set.
func (p *primary) detect(img image.Image) ([]card.LayoutBlock, error) {
	resized, err := utils.ResizeImage(img, p.constraints)
	if err != nil {
		return nil, fmt.Errorf("layout: resize failed: %w", err)
	}
	tensorData, tw, th, err := utils.NormalizeImage(resized)
	if err != nil {
		return nil, fmt.Errorf("layout: normalize failed: %w", err)
	}
	tensor, err := onnx.NewImageTensor(tensorData, 3, th, tw)
	if err != nil {
		return nil, fmt.Errorf("layout: tensor build failed: %w", err)
	}
	if err := onnx.VerifyImageTensor(tensor); err != nil {
		return nil, fmt.Errorf("layout: invalid tensor: %w", err)
	}

	p.mu.RLock()
	session := p.session
	p.mu.RUnlock()
	if session == nil {
		return nil, errors.New("layout: session closed")
	}

	inputTensor, err := onnxruntime_go.NewTensor(onnxruntime_go.NewShape(tensor.Shape...), tensor.Data)
	if err != nil {
		return nil, fmt.Errorf("layout: input tensor failed: %w", err)
	}
	defer func() { _ = inputTensor.Destroy() }()

	outputs := []onnxruntime_go.Value{nil}
	if err := session.Run([]onnxruntime_go.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("layout: inference failed: %w", err)
	}
	defer func() { _ = outputs[0].Destroy() }()

	floatTensor, ok := outputs[0].(*onnxruntime_go.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("layout: expected float32 output, got %T", outputs[0])
	}
	data := floatTensor.GetData()
	shape := floatTensor.GetShape()
	if len(shape) != 4 {
		return nil, fmt.Errorf("layout: expected 4D output, got %dD", len(shape))
	}
	numClasses := int(shape[1])
	mapH := int(shape[2])
	mapW := int(shape[3])
	if numClasses <= 0 || mapH <= 0 || mapW <= 0 {
		return nil, nil
	}

	bounds := img.Bounds()
	origW, origH := bounds.Dx(), bounds.Dy()
	scaleX := float64(origW) / float64(mapW)
	scaleY := float64(origH) / float64(mapH)

	var blocks []card.LayoutBlock
	for c := 0; c < numClasses && c <= int(rawCaption); c++ {
		start := c * mapH * mapW
		end := start + mapH*mapW
		if end > len(data) {
			break
		}
		channel := data[start:end]
		for _, r := range extractRegions(channel, mapW, mapH, p.cfg.DbThresh) {
			if r.meanScore < p.cfg.DbBoxThresh {
				continue
			}
			rect := scaleRect(r.bbox, scaleX, scaleY, origW, origH)
			if rect.W*rect.H < p.cfg.MinRegionSize {
				continue
			}
			blocks = append(blocks, card.LayoutBlock{
				Type:       remapBlockType(rawLabel(c)),
				BBox:       rect,
				Confidence: float64(r.meanScore),
				Source:     card.SourcePrimary,
			})
		}
	}

	if p.cfg.UseNMS {
		blocks = nonMaxSuppress(blocks, p.cfg.NMSThreshold)
	}
	return blocks, nil
}

func scaleRect(r rectI, scaleX, scaleY float64, origW, origH int) card.Rect {
	x := int(float64(r.minX) * scaleX)
	y := int(float64(r.minY) * scaleY)
	w := int(float64(r.maxX-r.minX+1) * scaleX)
	h := int(float64(r.maxY-r.minY+1) * scaleY)
	return clampRect(card.Rect{X: x, Y: y, W: w, H: h}, origW, origH)
}

func clampRect(r card.Rect, width, height int) card.Rect {
	if r.X < 0 {
		r.W += r.X
		r.X = 0
	}
	if r.Y < 0 {
		r.H += r.Y
		r.Y = 0
	}
	if r.X+r.W > width {
		r.W = width - r.X
	}
	if r.Y+r.H > height {
		r.H = height - r.Y
	}
	if r.W < 0 {
		r.W = 0
	}
	if r.H < 0 {
		r.H = 0
	}
	return r
}

// nonMaxSuppress drops lower-confidence blocks whose box overlaps a
// higher-confidence block of the same type beyond threshold.
func nonMaxSuppress(blocks []card.LayoutBlock, threshold float64) []card.LayoutBlock {
	if threshold <= 0 || len(blocks) < 2 {
		return blocks
	}
	ordered := make([]card.LayoutBlock, len(blocks))
	copy(ordered, blocks)
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			if ordered[i].Confidence < ordered[j].Confidence {
				ordered[i], ordered[j] = ordered[j], ordered[i]
			}
		}
	}

	keep := make([]bool, len(ordered))
	for i := range keep {
		keep[i] = true
	}
	for i := range ordered {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(ordered); j++ {
			if !keep[j] || ordered[i].Type != ordered[j].Type {
				continue
			}
			if iou(ordered[i].BBox, ordered[j].BBox) > threshold {
				keep[j] = false
			}
		}
	}

	var out []card.LayoutBlock
	for i, k := range keep {
		if k {
			out = append(out, ordered[i])
		}
	}
	return out
}

func iou(a, b card.Rect) float64 {
	ix0, iy0 := max(a.X, b.X), max(a.Y, b.Y)
	ix1, iy1 := min(a.X+a.W, b.X+b.W), min(a.Y+a.H, b.Y+b.H)
	if ix1 <= ix0 || iy1 <= iy0 {
		return 0
	}
	inter := float64((ix1 - ix0) * (iy1 - iy0))
	union := float64(a.W*a.H+b.W*b.H) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
