package stream

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	dataPrefix = "data: "
	doneMarker = "[DONE]"
)

type deltaEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Parser es la máquina de estados que convierte un stream SSE en deltas de
// texto. Tolera líneas partidas entre chunks: una línea cuyo JSON no parsea
// se devuelve al frente del buffer hasta que lleguen más bytes.
type Parser struct {
	buf  []byte
	done bool
}

func NewParser() *Parser {
	return &Parser{}
}

// Feed añade un chunk y extrae los deltas de las líneas completas. Devuelve
// done=true cuando se observó el marcador [DONE]; después de eso el parser
// ignora cualquier entrada adicional.
func (p *Parser) Feed(chunk []byte) ([]string, bool) {
	if p.done {
		return nil, true
	}
	p.buf = append(p.buf, chunk...)

	var deltas []string
	for {
		idx := bytes.IndexByte(p.buf, '\n')
		if idx < 0 {
			break
		}
		line := string(p.buf[:idx])
		p.buf = p.buf[idx+1:]

		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}

		payload := strings.TrimSpace(line[len(dataPrefix):])
		if payload == doneMarker {
			p.done = true
			p.buf = nil
			return deltas, true
		}

		var ev deltaEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			// Línea partida entre chunks: devolverla al buffer y esperar más bytes.
			p.buf = append([]byte(line+"\n"), p.buf...)
			break
		}
		if len(ev.Choices) > 0 && ev.Choices[0].Delta.Content != "" {
			deltas = append(deltas, ev.Choices[0].Delta.Content)
		}
	}

	return deltas, false
}

// Flush procesa lo que quede en el buffer cuando el upstream cerró sin emitir
// [DONE]. Las líneas que sigan sin parsear se descartan.
func (p *Parser) Flush() []string {
	if p.done || len(p.buf) == 0 {
		return nil
	}

	var deltas []string
	for _, raw := range strings.Split(string(p.buf), "\n") {
		raw = strings.TrimSuffix(raw, "\r")
		if strings.TrimSpace(raw) == "" || strings.HasPrefix(raw, ":") {
			continue
		}
		if !strings.HasPrefix(raw, dataPrefix) {
			continue
		}
		payload := strings.TrimSpace(raw[len(dataPrefix):])
		if payload == doneMarker {
			continue
		}
		var ev deltaEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			continue
		}
		if len(ev.Choices) > 0 && ev.Choices[0].Delta.Content != "" {
			deltas = append(deltas, ev.Choices[0].Delta.Content)
		}
	}

	p.buf = nil
	return deltas
}

// Done indica si ya se vio el marcador de fin.
func (p *Parser) Done() bool {
	return p.done
}
