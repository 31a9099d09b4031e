package zaim

import (
	"strconv"

	"github.com/lifedata/connector/internal/models"
)

type moneyRecord struct {
	ID            int64  `json:"id"`
	Mode          string `json:"mode"`
	UserID        int64  `json:"user_id"`
	Date          string `json:"date"`
	CategoryID    int64  `json:"category_id"`
	GenreID       int64  `json:"genre_id"`
	ToAccountID   int64  `json:"to_account_id"`
	FromAccountID int64  `json:"from_account_id"`
	Amount        int64  `json:"amount"`
	Comment       string `json:"comment"`
	Active        int    `json:"active"`
	Name          string `json:"name"`
	ReceiptID     int64  `json:"receipt_id"`
	Place         string `json:"place"`
	Created       string `json:"created"`
	CurrencyCode  string `json:"currency_code"`
}

type category struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Mode             string `json:"mode"`
	Sort             int    `json:"sort"`
	ParentCategoryID int64  `json:"parent_category_id"`
	Active           int    `json:"active"`
	Modified         string `json:"modified"`
}

type genre struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Sort          int    `json:"sort"`
	Active        int    `json:"active"`
	CategoryID    int64  `json:"category_id"`
	ParentGenreID int64  `json:"parent_genre_id"`
	Modified      string `json:"modified"`
}

type account struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Modified        string `json:"modified"`
	Sort            int    `json:"sort"`
	Active          int    `json:"active"`
	LocalID         int64  `json:"local_id"`
	WebsiteID       int64  `json:"website_id"`
	ParentAccountID int64  `json:"parent_account_id"`
}

func id(n int64) string { return strconv.FormatInt(n, 10) }

func moneyRecordToRaw(m moneyRecord) models.RawRecord {
	return models.RawRecord{
		SourceID: id(m.ID),
		Payload: map[string]any{
			"id":              m.ID,
			"mode":            m.Mode,
			"user_id":         m.UserID,
			"date":            m.Date,
			"category_id":     m.CategoryID,
			"genre_id":        m.GenreID,
			"to_account_id":   m.ToAccountID,
			"from_account_id": m.FromAccountID,
			"amount":          m.Amount,
			"comment":         m.Comment,
			"active":          m.Active,
			"name":            m.Name,
			"receipt_id":      m.ReceiptID,
			"place":           m.Place,
			"created":         m.Created,
			"currency_code":   m.CurrencyCode,
		},
	}
}

func categoryRecord(c category) models.RawRecord {
	return models.RawRecord{
		SourceID: id(c.ID),
		Payload: map[string]any{
			"id":                 c.ID,
			"name":               c.Name,
			"mode":               c.Mode,
			"sort":               c.Sort,
			"parent_category_id": c.ParentCategoryID,
			"active":             c.Active,
			"modified":           c.Modified,
		},
	}
}

func genreRecord(g genre) models.RawRecord {
	return models.RawRecord{
		SourceID: id(g.ID),
		Payload: map[string]any{
			"id":              g.ID,
			"name":            g.Name,
			"sort":            g.Sort,
			"active":          g.Active,
			"category_id":     g.CategoryID,
			"parent_genre_id": g.ParentGenreID,
			"modified":        g.Modified,
		},
	}
}

func accountRecord(a account) models.RawRecord {
	return models.RawRecord{
		SourceID: id(a.ID),
		Payload: map[string]any{
			"id":                a.ID,
			"name":              a.Name,
			"modified":          a.Modified,
			"sort":              a.Sort,
			"active":            a.Active,
			"local_id":          a.LocalID,
			"website_id":        a.WebsiteID,
			"parent_account_id": a.ParentAccountID,
		},
	}
}
