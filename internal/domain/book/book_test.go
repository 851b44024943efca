package book

import "testing"

func TestAverageOf(t *testing.T) {
	tests := []struct {
		name    string
		ratings []Rating
		want    int
	}{
		{name: "empty", ratings: nil, want: 0},
		{name: "single", ratings: []Rating{{UserID: "u1", Grade: 4}}, want: 4},
		{name: "exact mean", ratings: []Rating{{UserID: "u1", Grade: 4}, {UserID: "u2", Grade: 2}}, want: 3},
		{name: "rounds half up", ratings: []Rating{{UserID: "u1", Grade: 4}, {UserID: "u2", Grade: 3}}, want: 4},
		{name: "rounds down", ratings: []Rating{{UserID: "u1", Grade: 5}, {UserID: "u2", Grade: 1}, {UserID: "u3", Grade: 1}}, want: 2},
		{name: "all zeros", ratings: []Rating{{UserID: "u1", Grade: 0}, {UserID: "u2", Grade: 0}}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AverageOf(tt.ratings)

			if got != tt.want {
				t.Fatalf("AverageOf() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHasRatingFrom(t *testing.T) {
	b := Book{
		Ratings: []Rating{
			{UserID: "u1", Grade: 4},
			{UserID: "u2", Grade: 2},
		},
	}

	if !b.HasRatingFrom("u1") {
		t.Fatal("expected u1 to have rated the book")
	}

	if b.HasRatingFrom("u3") {
		t.Fatal("did not expect u3 to have rated the book")
	}
}
