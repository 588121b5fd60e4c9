package recognizer

import (
	"errors"
	"fmt"

	vosk "github.com/alphacep/vosk-api/go"

	"github.com/earshot-labs/earshot/internal/config"
)

type voskEngine struct {
	model *vosk.VoskModel
	rec   *vosk.VoskRecognizer
}

// NewVoskEngine loads the acoustic model from cfg.ModelPath and builds a
// recognizer with word timing enabled. Model acquisition is a
// precondition: a missing model directory is a load failure, not a
// download trigger.
func NewVoskEngine(cfg config.RecognizerConfig, sampleRate int) (Engine, error) {
	vosk.SetLogLevel(-1)

	model, err := vosk.NewModel(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, cfg.ModelPath, err)
	}
	rec, err := vosk.NewRecognizer(model, float64(sampleRate))
	if err != nil {
		model.Free()
		return nil, fmt.Errorf("%w: create recognizer: %v", ErrModelLoad, err)
	}
	rec.SetWords(1)

	return &voskEngine{model: model, rec: rec}, nil
}

func (e *voskEngine) AcceptChunk(pcm []byte) (bool, error) {
	if e.rec == nil {
		return false, errors.New("engine closed")
	}
	return e.rec.AcceptWaveform(pcm) != 0, nil
}

func (e *voskEngine) Result() (Result, error) {
	if e.rec == nil {
		return Result{}, errors.New("engine closed")
	}
	return decodeResult([]byte(e.rec.Result()))
}

func (e *voskEngine) Close() error {
	if e.rec != nil {
		e.rec.Free()
		e.rec = nil
	}
	if e.model != nil {
		e.model.Free()
		e.model = nil
	}
	return nil
}
