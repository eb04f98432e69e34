package importcsv

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/accountbook/internal/http/respond"
	"github.com/MrJamesThe3rd/accountbook/internal/importer"
	"github.com/MrJamesThe3rd/accountbook/internal/transaction"
)

// maxUploadSize bounds the in-memory part of a multipart upload.
const maxUploadSize = 10 << 20

type Handler struct {
	importSvc *importer.Service
}

func NewHandler(importSvc *importer.Service) *Handler {
	return &Handler{importSvc: importSvc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.importCSV)
}

type transactionResponse struct {
	ID            string           `json:"id"`
	AccountID     string           `json:"idUserAccount"`
	Type          transaction.Type `json:"type"`
	Amount        string           `json:"amount"`
	EffectiveDate transaction.Date `json:"effectiveDate"`
}

type importResponse struct {
	Imported     int                   `json:"imported"`
	Transactions []transactionResponse `json:"transactions"`
	Rejected     []importer.RowError   `json:"rejected"`
}

func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respond.Error(w, http.StatusBadRequest, "failed to parse form: "+err.Error())
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	result, err := h.importSvc.Import(r.Context(), file)
	if err != nil {
		if r.Context().Err() != nil {
			respond.Internal(w, err)
			return
		}

		respond.Error(w, http.StatusBadRequest, err.Error())

		return
	}

	respond.JSON(w, http.StatusOK, toResponse(result))
}

func toResponse(result *importer.Result) importResponse {
	resp := importResponse{
		Imported:     len(result.Created),
		Transactions: make([]transactionResponse, 0, len(result.Created)),
		Rejected:     result.Rejected,
	}

	if resp.Rejected == nil {
		resp.Rejected = []importer.RowError{}
	}

	for _, tx := range result.Created {
		resp.Transactions = append(resp.Transactions, transactionResponse{
			ID:            tx.ID.String(),
			AccountID:     tx.AccountID.String(),
			Type:          tx.Type,
			Amount:        tx.Amount.String(),
			EffectiveDate: tx.EffectiveDate,
		})
	}

	return resp
}
