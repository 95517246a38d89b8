// Package catalog persists processed job records to a Notion database and
// answers duplicate lookups against it.
package catalog

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"

	"github.com/jobfoundry/apply-cli/internal/model"
	"github.com/jobfoundry/apply-cli/pkg/notion"
)

// Catalog is the Notion-backed job catalog.
type Catalog struct {
	client notion.Client
	dbID   string
}

// New creates a Catalog over the given database.
func New(client notion.Client, dbID string) *Catalog {
	return &Catalog{client: client, dbID: dbID}
}

// FindByURL returns the catalog entry whose URL property equals url, or nil
// when none exists. Lookup is by exact match; callers normalize first.
func (c *Catalog) FindByURL(ctx context.Context, url string) (*model.CatalogRef, error) {
	resp, err := c.client.QueryDatabase(ctx, c.dbID, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "URL",
			RichText: &notionapi.TextFilterCondition{
				Equals: url,
			},
		},
		PageSize: 1,
	})
	if err != nil {
		return nil, eris.Wrap(err, "catalog: duplicate lookup")
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}

	page := resp.Results[0]
	return &model.CatalogRef{
		PageID: string(page.ID),
		URL:    page.URL,
	}, nil
}

// SaveRecord writes one processed job as a new catalog page and returns its
// reference. Called exactly once per fully processed request.
func (c *Catalog) SaveRecord(ctx context.Context, rec *model.JobRecord) (*model.CatalogRef, error) {
	props := notionapi.Properties{
		"Name": notionapi.TitleProperty{
			Title: richText(fmt.Sprintf("%s @ %s", rec.Title, rec.Company)),
		},
		"URL": notionapi.URLProperty{
			URL: rec.URL,
		},
		"Company": notionapi.RichTextProperty{
			RichText: richText(rec.Company),
		},
		// Stored as a 0-1 fraction; the database renders it as a percent.
		"Match Score": notionapi.NumberProperty{
			Number: float64(rec.Evaluation.Score) / 100,
		},
		"Extraction Method": notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(rec.Method)},
		},
	}
	if rec.Location != "" {
		props["Location"] = notionapi.RichTextProperty{
			RichText: richText(rec.Location),
		}
	}
	if rec.WorkMode != "" {
		props["Work Mode"] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: rec.WorkMode},
		}
	}
	if doc := rec.Resume.Document; doc != nil && doc.PDFURL != "" {
		props["Resume PDF"] = notionapi.URLProperty{URL: doc.PDFURL}
	}
	if doc := rec.CoverLetter.Document; doc != nil && doc.PDFURL != "" {
		props["Cover Letter PDF"] = notionapi.URLProperty{URL: doc.PDFURL}
	}
	if rec.Evaluation.VisaWarning != "" {
		props["Visa Warning"] = notionapi.RichTextProperty{
			RichText: richText(rec.Evaluation.VisaWarning),
		}
	}

	page, err := c.client.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(c.dbID),
		},
		Properties: props,
		Children:   recordBlocks(rec),
	})
	if err != nil {
		return nil, eris.Wrap(err, "catalog: create page")
	}

	return &model.CatalogRef{
		PageID: string(page.ID),
		URL:    page.URL,
	}, nil
}

// recordBlocks renders the evaluation narrative and document summaries as
// page body blocks.
func recordBlocks(rec *model.JobRecord) []notionapi.Block {
	var blocks []notionapi.Block

	blocks = append(blocks, heading("Evaluation"))
	if rec.Evaluation.Narrative != "" {
		blocks = append(blocks, paragraph(rec.Evaluation.Narrative))
	}
	for _, s := range rec.Evaluation.Strengths {
		blocks = append(blocks, bullet("✓ "+s))
	}
	for _, g := range rec.Evaluation.Gaps {
		blocks = append(blocks, bullet("✗ "+g))
	}

	if doc := rec.Resume.Document; doc != nil && doc.Summary != "" {
		blocks = append(blocks, heading("Resume Changes"), paragraph(doc.Summary))
	}
	if doc := rec.CoverLetter.Document; doc != nil && doc.Summary != "" {
		blocks = append(blocks, heading("Cover Letter Notes"), paragraph(doc.Summary))
	}

	return blocks
}

func richText(text string) []notionapi.RichText {
	return []notionapi.RichText{
		{Text: &notionapi.Text{Content: text}},
	}
}

func heading(text string) notionapi.Block {
	return &notionapi.Heading2Block{
		BasicBlock: notionapi.BasicBlock{
			Object: notionapi.ObjectTypeBlock,
			Type:   notionapi.BlockTypeHeading2,
		},
		Heading2: notionapi.Heading{
			RichText: richText(text),
		},
	}
}

func paragraph(text string) notionapi.Block {
	return &notionapi.ParagraphBlock{
		BasicBlock: notionapi.BasicBlock{
			Object: notionapi.ObjectTypeBlock,
			Type:   notionapi.BlockTypeParagraph,
		},
		Paragraph: notionapi.Paragraph{
			RichText: richText(text),
		},
	}
}

func bullet(text string) notionapi.Block {
	return &notionapi.BulletedListItemBlock{
		BasicBlock: notionapi.BasicBlock{
			Object: notionapi.ObjectTypeBlock,
			Type:   notionapi.BlockTypeBulletedListItem,
		},
		BulletedListItem: notionapi.ListItem{
			RichText: richText(text),
		},
	}
}
