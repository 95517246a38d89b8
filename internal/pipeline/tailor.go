package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jobfoundry/apply-cli/internal/docname"
	"github.com/jobfoundry/apply-cli/internal/model"
	"github.com/jobfoundry/apply-cli/pkg/anthropic"
	"github.com/jobfoundry/apply-cli/pkg/render"
)

// docSpec describes one tailoring sub-pipeline: which stages it reports and
// how its generation prompt is built.
type docSpec struct {
	name        string
	prefix      string
	tailorStage model.Stage
	renderStage model.Stage
	prompt      func(p *Pipeline, job *model.ExtractedJob, eval *model.Evaluation) string
}

var resumeSpec = docSpec{
	name:        "resume",
	prefix:      "Resume",
	tailorStage: model.StageTailoringResume,
	renderStage: model.StageRenderingResume,
	prompt:      resumePrompt,
}

var coverLetterSpec = docSpec{
	name:        "cover_letter",
	prefix:      "CoverLetter",
	tailorStage: model.StageTailoringCoverLetter,
	renderStage: model.StageRenderingCoverLetter,
	prompt:      coverLetterPrompt,
}

// tailoredPayload is the JSON shape returned by both tailoring calls.
type tailoredPayload struct {
	TailoredContent string `json:"tailored_content"`
	Summary         string `json:"summary"`
	WordCount       int    `json:"word_count"`
}

// tailorStage runs one document sub-pipeline: generate, render, upload.
// Every failure inside it is absorbed and recorded on the DocumentResult;
// nothing here ever aborts the job.
func (p *Pipeline) tailorStage(ctx context.Context, spec docSpec, job *model.ExtractedJob, eval *model.Evaluation, report ReportFunc, log *zap.Logger) model.DocumentResult {
	log = log.With(zap.String("document", spec.name))

	report(spec.tailorStage)
	doc, err := p.generate(ctx, spec, job, eval)
	if err != nil {
		log.Error("tailoring failed", zap.Error(err))
		return model.DocumentResult{
			Status: model.DocumentFailed,
			Reason: err.Error(),
		}
	}
	log.Info("document tailored", zap.Int("content_chars", len(doc.Content)))

	// Render and upload are best-effort: a compile or storage failure keeps
	// the generated content but leaves PDFURL empty.
	report(spec.renderStage)
	if url, err := p.renderAndUpload(ctx, spec, job, doc.Content); err != nil {
		log.Error("render/upload failed", zap.Error(err))
	} else {
		doc.PDFURL = url
		log.Info("document uploaded", zap.String("pdf_url", url))
	}

	return model.DocumentResult{
		Status:   model.DocumentGenerated,
		Document: doc,
	}
}

// generate runs the tailoring LLM call for one document.
func (p *Pipeline) generate(ctx context.Context, spec docSpec, job *model.ExtractedJob, eval *model.Evaluation) (*model.TailoredDocument, error) {
	resp, err := p.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.cfg.TailorModel,
		MaxTokens: 8192,
		System: []anthropic.SystemBlock{
			{Text: "You are an expert career writer. Always return valid JSON."},
		},
		Messages: []anthropic.Message{
			{Role: "user", Content: spec.prompt(p, job, eval)},
		},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "tailor %s: llm call", spec.name)
	}
	resp.Usage.LogUsage(p.cfg.TailorModel, "tailor_"+spec.name)

	var payload tailoredPayload
	if err := json.Unmarshal([]byte(anthropic.CleanJSON(resp.Text())), &payload); err != nil {
		return nil, eris.Wrapf(err, "tailor %s: parse response", spec.name)
	}
	if payload.TailoredContent == "" {
		return nil, eris.Errorf("tailor %s: empty content", spec.name)
	}

	return &model.TailoredDocument{
		Content:   payload.TailoredContent,
		Summary:   payload.Summary,
		WordCount: payload.WordCount,
	}, nil
}

// renderAndUpload compiles the document source and stores the PDF, returning
// its public URL.
func (p *Pipeline) renderAndUpload(ctx context.Context, spec docSpec, job *model.ExtractedJob, content string) (string, error) {
	pdf, err := p.renderer.Compile(ctx, render.CompileRequest{Source: content})
	if err != nil {
		return "", eris.Wrapf(err, "render %s", spec.name)
	}

	prefix := spec.prefix
	if p.cfg.FilePrefix != "" {
		prefix = p.cfg.FilePrefix + "_" + spec.prefix
	}
	name := docname.PDF(prefix, job.Title, job.Company, time.Now())

	result, err := p.storage.Upload(ctx, p.cfg.Bucket, name, pdf, "application/pdf")
	if err != nil {
		return "", eris.Wrapf(err, "upload %s", spec.name)
	}
	return result.PublicURL, nil
}

func resumePrompt(p *Pipeline, job *model.ExtractedJob, eval *model.Evaluation) string {
	var b strings.Builder
	b.WriteString("Tailor this LaTeX resume for the job below. The tailored resume must fit on ONE page: prune aggressively, keeping only the experience and skills most relevant to the role. Never invent experience.\n\n")
	b.WriteString("ROLE: " + job.Title + " at " + job.Company + "\n\n")
	b.WriteString("MASTER RESUME (LaTeX content):\n" + p.cfg.MasterResume + "\n\n")
	b.WriteString("JOB DESCRIPTION:\n" + job.Description + "\n\n")
	writeEvalContext(&b, eval)
	b.WriteString(`Return ONLY valid JSON:
{
  "tailored_content": "complete LaTeX content for the resume body",
  "summary": "brief overview of the pruning approach for this role",
  "word_count": <integer>
}`)
	return b.String()
}

func coverLetterPrompt(p *Pipeline, job *model.ExtractedJob, eval *model.Evaluation) string {
	var b strings.Builder
	b.WriteString("Write a SHORT, human cover letter (150-200 words) for the role below. Sound like a person, not a template: one concrete reason this company, one concrete proof of relevant ability, no filler phrases.\n\n")
	b.WriteString("ROLE: " + job.Title + " at " + job.Company + "\n\n")
	b.WriteString("CANDIDATE RESUME (for facts, never copy phrasing):\n" + p.cfg.MasterResume + "\n\n")
	b.WriteString("JOB DESCRIPTION:\n" + job.Description + "\n\n")
	writeEvalContext(&b, eval)
	b.WriteString(`Return ONLY valid JSON:
{
  "tailored_content": "complete LaTeX content for the letter body",
  "summary": "approach and key themes",
  "word_count": <integer>
}`)
	return b.String()
}

// writeEvalContext appends the evaluation's strengths and gaps so tailoring
// leans on what scored well.
func writeEvalContext(b *strings.Builder, eval *model.Evaluation) {
	b.WriteString("EVALUATION (lean on strengths, address gaps honestly):\n")
	for _, s := range eval.Strengths {
		b.WriteString("+ " + s + "\n")
	}
	for _, g := range eval.Gaps {
		b.WriteString("- " + g + "\n")
	}
	b.WriteString("\n")
}
