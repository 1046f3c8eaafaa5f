// Package validation defines the review API request bodies and checks them at the
// HTTP boundary. Error texts are returned to clients verbatim.
package validation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Error texts are part of the HTTP contract, hence the capitalization.
var (
	ErrHospitalNameRequired        = errors.New("Hospital name is required")
	ErrLocationRequired            = errors.New("Location is required")
	ErrHospitalAndLocationRequired = errors.New("Hospital name and location are required")
	ErrReviewTextRequired          = errors.New("Review text is required")
	ErrRatingOutOfRange            = errors.New("Rating must be between 1 and 5")
	ErrAnalyzeRatingOutOfRange     = errors.New("Rating must be between 0 and 5")
	ErrRatingNotWhole              = errors.New("Rating must be a whole number")
)

// ReviewsRequest is the body of POST /reviews.
type ReviewsRequest struct {
	HospitalName string `json:"hospital_name" validate:"required"`
	Location     string `json:"location" validate:"required"`
}

// AnalyzeRequest is the body of POST /analyze-review. A missing rating is 0.
type AnalyzeRequest struct {
	ReviewText string  `json:"review_text" validate:"required"`
	AuthorName string  `json:"author_name"`
	Rating     float64 `json:"rating" validate:"min=0,max=5,whole"`
}

// SubmitRequest is the body of POST /submit-review. Fields are checked in
// declaration order and the first failure is reported.
type SubmitRequest struct {
	HospitalName string  `json:"hospital_name" validate:"required"`
	Location     string  `json:"location" validate:"required"`
	ReviewText   string  `json:"review_text" validate:"required"`
	AuthorName   string  `json:"author_name"`
	Rating       float64 `json:"rating" validate:"min=1,max=5,whole"`
}

// Normalize trims every string field.
func (r *ReviewsRequest) Normalize() {
	r.HospitalName = strings.TrimSpace(r.HospitalName)
	r.Location = strings.TrimSpace(r.Location)
}

func (r *AnalyzeRequest) Normalize() {
	r.ReviewText = strings.TrimSpace(r.ReviewText)
	r.AuthorName = strings.TrimSpace(r.AuthorName)
}

func (r *SubmitRequest) Normalize() {
	r.HospitalName = strings.TrimSpace(r.HospitalName)
	r.Location = strings.TrimSpace(r.Location)
	r.ReviewText = strings.TrimSpace(r.ReviewText)
	r.AuthorName = strings.TrimSpace(r.AuthorName)
}

// messages maps "<Type>.<json field>" to the client-facing error.
var messages = map[string]error{
	"ReviewsRequest.hospital_name": ErrHospitalNameRequired,
	"ReviewsRequest.location":      ErrLocationRequired,
	"AnalyzeRequest.review_text":   ErrReviewTextRequired,
	"AnalyzeRequest.rating":        ErrAnalyzeRatingOutOfRange,
	"SubmitRequest.hospital_name":  ErrHospitalAndLocationRequired,
	"SubmitRequest.location":       ErrHospitalAndLocationRequired,
	"SubmitRequest.review_text":    ErrReviewTextRequired,
	"SubmitRequest.rating":         ErrRatingOutOfRange,
}

var (
	once     sync.Once
	validate *validator.Validate
)

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
		_ = validate.RegisterValidation("whole", func(fl validator.FieldLevel) bool {
			f := fl.Field().Float()
			return f == math.Trunc(f)
		})
	})
	return validate
}

// ValidateStruct checks a request body and returns the message for its first
// failing field. Callers normalize the request first.
func ValidateStruct(req interface{}) error {
	err := getValidator().Struct(req)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return err
	}
	fe := ve[0]
	if fe.Tag() == "whole" {
		return ErrRatingNotWhole
	}
	if msg, ok := messages[fe.Namespace()]; ok {
		return msg
	}
	return fmt.Errorf("%s failed on %s", fe.Field(), fe.Tag())
}
