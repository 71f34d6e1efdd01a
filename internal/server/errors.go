package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	customerdomain "github.com/smallbiznis/telcobill/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/telcobill/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/telcobill/internal/payment/domain"
	"github.com/smallbiznis/telcobill/internal/period"
	plandomain "github.com/smallbiznis/telcobill/internal/plan/domain"
	"github.com/smallbiznis/telcobill/internal/rating"
	usagedomain "github.com/smallbiznis/telcobill/internal/usage/domain"
)

// apiError is the wire shape for failures. Internal identifiers never leak
// into user-visible validation messages.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e apiError) Error() string { return e.Code }

var errNotFound = errors.New("not_found")

func invalidRequestError() apiError {
	return apiError{Code: "invalid_request", Message: "request body could not be parsed"}
}

func newValidationError(field, code, message string) apiError {
	return apiError{Code: code, Message: message, Field: field}
}

// AbortWithError maps domain sentinel errors onto the HTTP taxonomy:
// not-found 404, conflict 409, invalid input 422, data integrity 500 with an
// operator-facing code, dependency-blocked 409.
func AbortWithError(c *gin.Context, err error) {
	if apiErr, ok := err.(apiError); ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": apiErr})
		return
	}

	status := http.StatusInternalServerError
	response := apiError{Code: "internal_error", Message: "an internal error occurred"}

	switch {
	case errors.Is(err, errNotFound),
		errors.Is(err, customerdomain.ErrCustomerNotFound),
		errors.Is(err, customerdomain.ErrSimNotFound),
		errors.Is(err, plandomain.ErrPlanNotFound),
		errors.Is(err, usagedomain.ErrSimNotFound),
		errors.Is(err, invoicedomain.ErrBillNotFound),
		errors.Is(err, paymentdomain.ErrBillNotFound):
		status = http.StatusNotFound
		response = apiError{Code: err.Error(), Message: "resource not found"}

	case errors.Is(err, invoicedomain.ErrDuplicateBill),
		errors.Is(err, plandomain.ErrDuplicatePlan),
		errors.Is(err, customerdomain.ErrDuplicateEmail),
		errors.Is(err, customerdomain.ErrDuplicateMsisdn),
		errors.Is(err, usagedomain.ErrMonthClosed):
		status = http.StatusConflict
		response = apiError{Code: err.Error(), Message: "the request conflicts with existing state"}

	case errors.Is(err, plandomain.ErrPlanInUse):
		status = http.StatusConflict
		response = apiError{Code: err.Error(), Message: "the plan is referenced by active SIMs"}

	case errors.Is(err, plandomain.ErrPlanCorrupt):
		// Data-integrity violation: surfaced, never auto-corrected.
		status = http.StatusInternalServerError
		response = apiError{Code: err.Error(), Message: "tariff data is inconsistent; contact the operator"}

	case errors.Is(err, customerdomain.ErrInvalidCustomer),
		errors.Is(err, customerdomain.ErrInvalidName),
		errors.Is(err, customerdomain.ErrInvalidEmail),
		errors.Is(err, customerdomain.ErrInvalidSim),
		errors.Is(err, customerdomain.ErrInvalidMsisdn),
		errors.Is(err, customerdomain.ErrCustomerNotActive),
		errors.Is(err, customerdomain.ErrCustomerDisconnected),
		errors.Is(err, plandomain.ErrInvalidPlan),
		errors.Is(err, usagedomain.ErrInvalidSim),
		errors.Is(err, usagedomain.ErrInvalidUsageData),
		errors.Is(err, rating.ErrInvalidUsageData),
		errors.Is(err, invoicedomain.ErrInvalidBill),
		errors.Is(err, invoicedomain.ErrInvalidMonth),
		errors.Is(err, invoicedomain.ErrEmptyBill),
		errors.Is(err, paymentdomain.ErrInvalidBill),
		errors.Is(err, paymentdomain.ErrInvalidPaymentAmount),
		errors.Is(err, paymentdomain.ErrInvalidPaymentMode),
		errors.Is(err, period.ErrInvalidMonth):
		status = http.StatusUnprocessableEntity
		response = apiError{Code: err.Error(), Message: "the request contains invalid values"}
	}

	c.AbortWithStatusJSON(status, gin.H{"error": response})
}
