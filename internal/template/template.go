// Package template renders an assembled job as a host configuration file,
// the Python job description the event-processing framework executes.
package template

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	texttemplate "text/template"

	"github.com/opendata-tools/zeejob/internal/assembly"
	"github.com/opendata-tools/zeejob/pkg/job"
)

// HostConfig is the data a host configuration is rendered from.
type HostConfig struct {
	JobName    string
	Process    string
	SourceType string
	Files      []string
	Lumis      []string
	Label      string
	Params     job.FilterParameters
	MaxEvents  int
	PathName   string
}

// FromJob collects the rendering data of an assembled job.
func FromJob(j *assembly.Job) HostConfig {
	cfg := j.Config()
	step := j.Step()
	return HostConfig{
		JobName:    cfg.Name(),
		Process:    cfg.Process(),
		SourceType: assembly.SourceType,
		Files:      j.Files().Locators(),
		Lumis:      j.Mask().CMSSWStrings(),
		Label:      step.Label,
		Params:     step.Params,
		MaxEvents:  cfg.MaxEvents().HostValue(),
		PathName:   j.Path().Name,
	}
}

const hostConfigText = `# Generated by zeejob from job {{ py .JobName }}.
import FWCore.ParameterSet.Config as cms

process = cms.Process({{ py .Process }})

process.source = cms.Source({{ py .SourceType }},
    fileNames = cms.untracked.vstring(*[
{{- range .Files }}
        {{ py . }},
{{- end }}
    ])
)

process.source.lumisToProcess = cms.untracked.VLuminosityBlockRange()
process.source.lumisToProcess.extend([
{{- range .Lumis }}
    {{ py . }},
{{- end }}
])

process.{{ .Label }} = cms.EDFilter({{ py .Label }},
    electronInputTag = {{ inputTag .Params.ElectronInputTag }},
    csvFileName = cms.string({{ py .Params.CSVFileName }}),
    invariantMassMin = cms.double({{ pyFloat .Params.InvariantMassMin }}),
    invariantMassMax = cms.double({{ pyFloat .Params.InvariantMassMax }})
)

process.maxEvents = cms.untracked.PSet(input = cms.untracked.int32({{ .MaxEvents }}))

process.{{ .PathName }} = cms.Path(process.{{ .Label }})
process.schedule = cms.Schedule(process.{{ .PathName }})
`

var (
	hostTemplate     *texttemplate.Template
	hostTemplateOnce sync.Once
)

func getHostTemplate() *texttemplate.Template {
	hostTemplateOnce.Do(func() {
		hostTemplate = texttemplate.Must(texttemplate.New("host").Funcs(texttemplate.FuncMap{
			"py":       PyString,
			"pyFloat":  PyFloat,
			"inputTag": pyInputTag,
		}).Parse(hostConfigText))
	})
	return hostTemplate
}

// Render writes the host configuration for hc to w.
func Render(w io.Writer, hc HostConfig) error {
	if !isIdentifier(hc.Label) {
		return fmt.Errorf("module label %q is not a valid identifier", hc.Label)
	}
	if !isIdentifier(hc.PathName) {
		return fmt.Errorf("path name %q is not a valid identifier", hc.PathName)
	}
	if err := getHostTemplate().Execute(w, hc); err != nil {
		return fmt.Errorf("rendering host configuration: %w", err)
	}
	return nil
}

// RenderCMSSW writes the host configuration of an assembled job to w.
func RenderCMSSW(w io.Writer, j *assembly.Job) error {
	return Render(w, FromJob(j))
}

// PyString quotes s as a single-quoted Python string literal.
func PyString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\x%02x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// PyFloat formats f as a Python float literal; integral values keep a ".0".
func PyFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eIN") {
		s += ".0"
	}
	return s
}

func pyInputTag(tag job.InputTag) string {
	args := []string{PyString(tag.Label)}
	if tag.Instance != "" || tag.Process != "" {
		args = append(args, PyString(tag.Instance))
	}
	if tag.Process != "" {
		args = append(args, PyString(tag.Process))
	}
	return "cms.InputTag(" + strings.Join(args, ", ") + ")"
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
