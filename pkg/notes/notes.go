// Package notes writes study notes from a topic or a video transcript.
package notes

import (
	"context"
	"strings"

	"github.com/barekit/lectern/pkg/apperr"
	"github.com/barekit/lectern/pkg/generate"
)

var topicPrompt = generate.MustPrompt("topic_notes", `Generate detailed notes on the given topic. Use headings, subheadings, and bullet points to organize the information.
Make sure to cover key concepts, important details, and any relevant examples or applications.

Topic: {{.Topic}}

Please structure your notes as follows:
1. Start with a brief introduction to the topic.
2. Use main headings (##) for major sections.
3. Use subheadings (###) for subsections.
4. Use bullet points (-) for listing details, examples, or key points.
5. Conclude with a summary of the main points.

Notes:
`)

var transcriptPrompt = generate.MustPrompt("video_notes", `Title: Detailed Notes on {{.Subject}} from YouTube Video Transcript

As an expert in {{.Subject}}, your task is to provide detailed notes based on the transcript of a YouTube video I'll provide. Assume the role of a student and generate comprehensive notes covering the key concepts discussed in the video.

Your notes should:

- Analyze and explain the main ideas, theories, or concepts presented in the video.
- Provide examples, illustrations, or case studies to support the understanding of the topic.
- Offer insights or practical applications of the subject matter discussed.
- Use clear language and concise explanations to facilitate learning.

Please provide the notes based on the following transcript:

{{.Transcript}}
`)

// Writer turns topics and transcripts into notes.
type Writer struct {
	gen *generate.Generator
}

// New creates a new Writer.
func New(gen *generate.Generator) *Writer {
	return &Writer{gen: gen}
}

// Topic writes notes on topic. The model output is returned verbatim.
func (w *Writer) Topic(ctx context.Context, topic string) (string, error) {
	if strings.TrimSpace(topic) == "" {
		return "", apperr.Invalid("topic is required")
	}
	prompt, err := topicPrompt.Render(map[string]string{"Topic": topic})
	if err != nil {
		return "", err
	}
	return w.gen.Run(ctx, prompt)
}

// Transcript writes notes on subject from a video transcript.
func (w *Writer) Transcript(ctx context.Context, transcript, subject string) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", apperr.Invalid("subject is required")
	}
	if strings.TrimSpace(transcript) == "" {
		return "", apperr.ErrTranscriptUnavailable
	}
	prompt, err := transcriptPrompt.Render(map[string]string{
		"Subject":    subject,
		"Transcript": transcript,
	})
	if err != nil {
		return "", err
	}
	return w.gen.Run(ctx, prompt)
}
