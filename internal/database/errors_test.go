package database

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorClass
	}{
		{nil, ErrorClassPermanent},
		{&pq.Error{Code: "40001"}, ErrorClassSerialization},
		{&pq.Error{Code: "40P01"}, ErrorClassDeadlock},
		{&pq.Error{Code: "55P03"}, ErrorClassTransient},
		{&pq.Error{Code: "23505"}, ErrorClassPermanent},
		{&pq.Error{Code: "23503"}, ErrorClassPermanent},
		{sql.ErrNoRows, ErrorClassPermanent},
		{ErrInsufficientStock, ErrorClassPermanent},
	}

	for _, tc := range cases {
		if got := ClassifyError(tc.err); got != tc.want {
			t.Errorf("ClassifyError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	retryable := []error{
		&pq.Error{Code: "40001"},
		&pq.Error{Code: "40P01"},
		&pq.Error{Code: "55P03"},
		fmt.Errorf("lock product: %w", &pq.Error{Code: "40001"}),
	}
	for _, err := range retryable {
		if !IsRetryable(err) {
			t.Errorf("IsRetryable(%v) = false, want true", err)
		}
	}

	permanent := []error{
		nil,
		sql.ErrNoRows,
		&pq.Error{Code: "23505"},
		ErrOrderClosed,
		ErrDuplicateLineItem,
	}
	for _, err := range permanent {
		if IsRetryable(err) {
			t.Errorf("IsRetryable(%v) = true, want false", err)
		}
	}
}

func TestErrorPredicates(t *testing.T) {
	notFound := []error{ErrProductNotFound, ErrOrderNotFound, ErrLineItemNotFound}
	for _, err := range notFound {
		if !IsNotFound(err) {
			t.Errorf("IsNotFound(%v) = false, want true", err)
		}
		if IsBusinessRule(err) {
			t.Errorf("IsBusinessRule(%v) = true, want false", err)
		}
	}

	rules := []error{
		ErrInsufficientStock,
		ErrDuplicateLineItem,
		ErrOrderClosed,
		ErrOrderAlreadyClosed,
		ErrEmptyOrder,
		ValidationError("quantity must be greater than zero"),
	}
	for _, err := range rules {
		if !IsBusinessRule(err) {
			t.Errorf("IsBusinessRule(%v) = false, want true", err)
		}
		if IsNotFound(err) {
			t.Errorf("IsNotFound(%v) = true, want false", err)
		}
	}
}
