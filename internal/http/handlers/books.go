package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/avanel/bookhub/internal/cache"
	"github.com/avanel/bookhub/internal/domain/book"
	"github.com/avanel/bookhub/internal/http/middlewares"
	"github.com/avanel/bookhub/internal/storage"
	"github.com/gin-gonic/gin"
)

const bestRatedCount = 3

type BooksStore interface {
	Create(ctx context.Context, b book.Book) (book.Book, error)
	List(ctx context.Context) ([]book.Book, error)
	GetByID(ctx context.Context, id string) (book.Book, error)
	Update(ctx context.Context, b book.Book) (book.Book, error)
	UpdateRatings(ctx context.Context, id string, ratings []book.Rating, average int) (book.Book, error)
	Delete(ctx context.Context, id string) error
	BestRated(ctx context.Context, limit int) ([]book.Book, error)
}

type ImageStore interface {
	Save(file *multipart.FileHeader) (string, error)
	Remove(imageURL string) error
}

type BooksHandler struct {
	repo   BooksStore
	images ImageStore
	cache  *cache.Cache
}

func NewBooksHandler(repo BooksStore, images ImageStore, readCache *cache.Cache) *BooksHandler {
	return &BooksHandler{repo: repo, images: images, cache: readCache}
}

func (h *BooksHandler) CreateBook(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	var req book.CreateBookRequest

	if !BindFormJSON(ctx, "book", &req) {
		return
	}

	file, err := ctx.FormFile("image")

	if err != nil {
		RespondBadRequest(ctx, "Cover image is required", nil)
		return
	}

	imageURL, err := h.images.Save(file)

	if err != nil {
		respondImageError(ctx, err)
		return
	}

	// A single rating supplied at creation seeds the average; anything else
	// starts at zero.
	averageRating := 0

	if len(req.Ratings) == 1 {
		averageRating = req.Ratings[0].Grade
	}

	ratings := req.Ratings

	if ratings == nil {
		ratings = []book.Rating{}
	}

	newBook := book.Book{
		UserID:        userID,
		Title:         req.Title,
		Author:        req.Author,
		Genre:         req.Genre,
		Year:          req.Year,
		ImageURL:      imageURL,
		Ratings:       ratings,
		AverageRating: averageRating,
	}

	cctx, cancel := h.opTimeout(ctx)

	defer cancel()

	created, err := h.repo.Create(cctx, newBook)

	if err != nil {
		// compensate: the row never landed, so drop the stored image
		_ = h.images.Remove(imageURL)
		RespondInternal(ctx, "Could not create book")
		return
	}

	h.invalidate(ctx)

	ctx.JSON(http.StatusCreated, created)
}

func (h *BooksHandler) ListBooks(ctx *gin.Context) {
	var books []book.Book

	if h.cache.Get(ctx.Request.Context(), cache.KeyBooksList, &books) {
		ctx.JSON(http.StatusOK, books)
		return
	}

	cctx, cancel := h.opTimeout(ctx)

	defer cancel()

	books, err := h.repo.List(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not list books")
		return
	}

	h.cache.Set(ctx.Request.Context(), cache.KeyBooksList, books)

	ctx.JSON(http.StatusOK, books)
}

func (h *BooksHandler) GetBook(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := h.opTimeout(ctx)

	defer cancel()

	b, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, book.ErrNotFound) {
			RespondNotFound(ctx, "Book not found")
			return
		}
		RespondInternal(ctx, "Could not fetch book")
		return
	}

	ctx.JSON(http.StatusOK, b)
}

func (h *BooksHandler) UpdateBook(ctx *gin.Context) {
	id := ctx.Param("id")

	var req book.UpdateBookRequest
	var file *multipart.FileHeader

	// With a new cover the client sends multipart ("book" JSON field plus
	// "image"); a fields-only update is a plain JSON body.
	if strings.HasPrefix(ctx.ContentType(), "multipart/form-data") {
		if raw := ctx.PostForm("book"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &req); err != nil {
				RespondBadRequest(ctx, "Invalid request body", gin.H{"json": "invalid_json_syntax"})
				return
			}
		}

		file, _ = ctx.FormFile("image")
	} else {
		if !BindJSON(ctx, &req) {
			return
		}
	}

	cctx, cancel := h.opTimeout(ctx)

	defer cancel()

	existing, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, book.ErrNotFound) {
			RespondNotFound(ctx, "Book not found")
			return
		}
		RespondInternal(ctx, "Could not fetch book")
		return
	}

	// Zero-value fields keep the stored value.
	if req.Title != "" {
		existing.Title = req.Title
	}

	if req.Author != "" {
		existing.Author = req.Author
	}

	if req.Genre != "" {
		existing.Genre = req.Genre
	}

	if req.Year != 0 {
		existing.Year = req.Year
	}

	oldImageURL := existing.ImageURL

	if file != nil {
		newURL, err := h.images.Save(file)

		if err != nil {
			respondImageError(ctx, err)
			return
		}

		existing.ImageURL = newURL
	}

	updated, err := h.repo.Update(cctx, existing)

	if err != nil {
		if file != nil {
			_ = h.images.Remove(existing.ImageURL)
		}

		if errors.Is(err, book.ErrNotFound) {
			RespondNotFound(ctx, "Book not found")
			return
		}

		RespondInternal(ctx, "Could not update book")
		return
	}

	// old cover is only dropped once the row points at the new one
	if file != nil && oldImageURL != "" {
		_ = h.images.Remove(oldImageURL)
	}

	h.invalidate(ctx)

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Book updated.",
		"book":    updated,
	})
}

func (h *BooksHandler) DeleteBook(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := h.opTimeout(ctx)

	defer cancel()

	existing, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, book.ErrNotFound) {
			RespondNotFound(ctx, "Book not found")
			return
		}
		RespondInternal(ctx, "Could not fetch book")
		return
	}

	// image first; if the file cannot be removed the record is kept so no
	// URL ever dangles
	err = h.images.Remove(existing.ImageURL)

	if err != nil {
		RespondStorageError(ctx, "Could not delete cover image")
		return
	}

	err = h.repo.Delete(cctx, id)

	if err != nil {
		if errors.Is(err, book.ErrNotFound) {
			RespondNotFound(ctx, "Book not found")
			return
		}
		RespondInternal(ctx, "Could not delete book")
		return
	}

	h.invalidate(ctx)

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Book deleted.",
	})
}

func (h *BooksHandler) RateBook(ctx *gin.Context) {
	id := ctx.Param("id")

	var req book.RateRequest

	if !BindJSON(ctx, &req) {
		return
	}

	grade := *req.Rating

	if grade < 0 || grade > 5 {
		RespondBadRequest(ctx, "Rating must be between 0 and 5.", nil)
		return
	}

	cctx, cancel := h.opTimeout(ctx)

	defer cancel()

	b, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, book.ErrNotFound) {
			RespondNotFound(ctx, "Book not found")
			return
		}
		RespondInternal(ctx, "Could not fetch book")
		return
	}

	if b.HasRatingFrom(req.UserID) {
		RespondConflict(ctx, "already_rated", "This user has already rated this book.")
		return
	}

	ratings := append(b.Ratings, book.Rating{UserID: req.UserID, Grade: grade})

	updated, err := h.repo.UpdateRatings(cctx, id, ratings, book.AverageOf(ratings))

	if err != nil {
		if errors.Is(err, book.ErrNotFound) {
			RespondNotFound(ctx, "Book not found")
			return
		}
		RespondInternal(ctx, "Could not rate book")
		return
	}

	h.invalidate(ctx)

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Rating saved.",
		"book":    updated,
	})
}

func (h *BooksHandler) BestRating(ctx *gin.Context) {
	var books []book.Book

	if h.cache.Get(ctx.Request.Context(), cache.KeyBooksBest, &books) {
		ctx.JSON(http.StatusOK, books)
		return
	}

	cctx, cancel := h.opTimeout(ctx)

	defer cancel()

	books, err := h.repo.BestRated(cctx, bestRatedCount)

	if err != nil {
		RespondInternal(ctx, "Could not fetch best rated books")
		return
	}

	h.cache.Set(ctx.Request.Context(), cache.KeyBooksBest, books)

	ctx.JSON(http.StatusOK, books)
}

// helper functions

func (h *BooksHandler) opTimeout(ctx *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), 3*time.Second)
}

func (h *BooksHandler) invalidate(ctx *gin.Context) {
	h.cache.Invalidate(ctx.Request.Context(), cache.KeyBooksList, cache.KeyBooksBest)
}

func respondImageError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		RespondBadRequest(ctx, "Image exceeds the 4 MiB upload limit.", nil)
	case errors.Is(err, storage.ErrNotAnImage):
		RespondBadRequest(ctx, "File is not a valid image.", nil)
	default:
		RespondInternal(ctx, "Could not process image")
	}
}
