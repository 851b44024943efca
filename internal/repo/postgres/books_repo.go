package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/avanel/bookhub/internal/domain/book"
	"github.com/avanel/bookhub/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BooksRepo struct {
	pool *pgxpool.Pool
	obs  *observability.Prom
}

func NewBooksRepo(pool *pgxpool.Pool, obs *observability.Prom) *BooksRepo {
	return &BooksRepo{pool: pool, obs: obs}
}

const bookColumns = `id, user_id, title, author, genre, year, image_url, ratings, average_rating, created_at, updated_at`

func scanBook(row pgx.Row) (book.Book, error) {
	var b book.Book
	var ratings []byte

	err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.Title,
		&b.Author,
		&b.Genre,
		&b.Year,
		&b.ImageURL,
		&ratings,
		&b.AverageRating,
		&b.CreatedAt,
		&b.UpdatedAt,
	)

	if err != nil {
		return book.Book{}, err
	}

	err = json.Unmarshal(ratings, &b.Ratings)

	if err != nil {
		return book.Book{}, err
	}

	if b.Ratings == nil {
		b.Ratings = []book.Rating{}
	}

	return b, nil
}

func (r *BooksRepo) Create(ctx context.Context, b book.Book) (book.Book, error) {
	now := time.Now().UTC()

	b.ID = uuid.NewString()
	b.CreatedAt = now
	b.UpdatedAt = now

	if b.Ratings == nil {
		b.Ratings = []book.Rating{}
	}

	ratings, err := json.Marshal(b.Ratings)

	if err != nil {
		return book.Book{}, err
	}

	err = r.obs.ObserveDB("books.create", func() error {
		_, err := r.pool.Exec(
			ctx,
			`INSERT INTO books(id, user_id, title, author, genre, year, image_url, ratings, average_rating, created_at, updated_at)
			 VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			b.ID, b.UserID, b.Title, b.Author, b.Genre, b.Year, b.ImageURL, ratings, b.AverageRating, b.CreatedAt, b.UpdatedAt,
		)

		return err
	})

	if err != nil {
		return book.Book{}, err
	}

	return b, nil
}

func (r *BooksRepo) List(ctx context.Context) ([]book.Book, error) {
	var output []book.Book

	err := r.obs.ObserveDB("books.list", func() error {
		rows, err := r.pool.Query(ctx, `SELECT `+bookColumns+` FROM books ORDER BY created_at ASC, id ASC`)

		if err != nil {
			return err
		}

		defer rows.Close()

		output = make([]book.Book, 0)

		for rows.Next() {
			b, err := scanBook(rows)

			if err != nil {
				return err
			}

			output = append(output, b)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return output, nil
}

func (r *BooksRepo) GetByID(ctx context.Context, id string) (book.Book, error) {
	var b book.Book

	err := r.obs.ObserveDB("books.get_by_id", func() error {
		var err error

		b, err = scanBook(r.pool.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id))

		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return book.Book{}, book.ErrNotFound
		}

		return book.Book{}, err
	}

	return b, nil
}

// Update overwrites the mutable fields of a book row. Field merging against
// the stored record happens in the handler.
func (r *BooksRepo) Update(ctx context.Context, b book.Book) (book.Book, error) {
	var updated book.Book

	err := r.obs.ObserveDB("books.update", func() error {
		var err error

		updated, err = scanBook(r.pool.QueryRow(
			ctx,
			`UPDATE books
				SET title = $2,
						author = $3,
						genre = $4,
						year = $5,
						image_url = $6,
						updated_at = NOW()
			WHERE id = $1
			RETURNING `+bookColumns,
			b.ID,
			b.Title,
			b.Author,
			b.Genre,
			b.Year,
			b.ImageURL,
		))

		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return book.Book{}, book.ErrNotFound
		}

		return book.Book{}, err
	}

	return updated, nil
}

// UpdateRatings replaces the ratings document and the precomputed average.
func (r *BooksRepo) UpdateRatings(ctx context.Context, id string, ratings []book.Rating, average int) (book.Book, error) {
	doc, err := json.Marshal(ratings)

	if err != nil {
		return book.Book{}, err
	}

	var updated book.Book

	err = r.obs.ObserveDB("books.update_ratings", func() error {
		var err error

		updated, err = scanBook(r.pool.QueryRow(
			ctx,
			`UPDATE books
				SET ratings = $2,
						average_rating = $3,
						updated_at = NOW()
			WHERE id = $1
			RETURNING `+bookColumns,
			id,
			doc,
			average,
		))

		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return book.Book{}, book.ErrNotFound
		}

		return book.Book{}, err
	}

	return updated, nil
}

func (r *BooksRepo) Delete(ctx context.Context, id string) error {
	return r.obs.ObserveDB("books.delete", func() error {
		query, err := r.pool.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)

		if err != nil {
			return err
		}

		// if no rows were deleted as a result return a not found error
		if query.RowsAffected() == 0 {
			return book.ErrNotFound
		}

		return nil
	})
}

// BestRated returns the top rated books, highest average first. Ties keep
// storage order.
func (r *BooksRepo) BestRated(ctx context.Context, limit int) ([]book.Book, error) {
	var output []book.Book

	err := r.obs.ObserveDB("books.best_rated", func() error {
		rows, err := r.pool.Query(
			ctx,
			`SELECT `+bookColumns+` FROM books ORDER BY average_rating DESC LIMIT $1`,
			limit,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		output = make([]book.Book, 0, limit)

		for rows.Next() {
			b, err := scanBook(rows)

			if err != nil {
				return err
			}

			output = append(output, b)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return output, nil
}
