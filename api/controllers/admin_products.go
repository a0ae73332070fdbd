package controllers

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/trendora/trendora-backend/api/responses"
	"github.com/trendora/trendora-backend/api/validators"
	productsvc "github.com/trendora/trendora-backend/internal/products"
	"github.com/trendora/trendora-backend/pkg/config"
	pkgerrors "github.com/trendora/trendora-backend/pkg/errors"
	"github.com/trendora/trendora-backend/pkg/logger"
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// AdminCreateProduct creates a catalog listing. The request is
// multipart: a "payload" JSON part plus zero or more "images" files.
func AdminCreateProduct(svc productsvc.Service, media config.MediaConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		var body productsvc.CreateProductRequest
		uploads, err := parseProductForm(r, media, &body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Create(r.Context(), body, uploads)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

// AdminUpdateProduct edits a listing and reconciles its image set.
func AdminUpdateProduct(svc productsvc.Service, media config.MediaConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		id, err := parsePathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body productsvc.UpdateProductRequest
		uploads, err := parseProductForm(r, media, &body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Update(r.Context(), id, body, uploads)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// AdminDeleteProduct removes a listing and its stored images.
func AdminDeleteProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		id, err := parsePathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

// AdminListProducts serves the catalog including hidden listings.
func AdminListProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		params, err := buildListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.IncludeHidden = true

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func parseProductForm(r *http.Request, media config.MediaConfig, payload any) ([]productsvc.ImageUpload, error) {
	maxBytes := int64(media.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form")
	}

	raw := r.FormValue("payload")
	if err := validators.DecodeJSONValue([]byte(raw), payload); err != nil {
		return nil, err
	}

	files := r.MultipartForm.File["images"]
	if len(files) > media.MaxImagesPerProduct {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "too many images").WithDetails(map[string]any{
			"maxImages": media.MaxImagesPerProduct,
		})
	}

	uploads := make([]productsvc.ImageUpload, 0, len(files))
	for _, header := range files {
		upload, err := readImagePart(header)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, upload)
	}
	return uploads, nil
}

func readImagePart(header *multipart.FileHeader) (productsvc.ImageUpload, error) {
	contentType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if !allowedImageTypes[contentType] {
		return productsvc.ImageUpload{}, pkgerrors.New(pkgerrors.CodeValidation, "unsupported image type").WithDetails(map[string]any{
			"filename":    header.Filename,
			"contentType": contentType,
		})
	}

	file, err := header.Open()
	if err != nil {
		return productsvc.ImageUpload{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "open image part")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return productsvc.ImageUpload{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read image part")
	}

	return productsvc.ImageUpload{
		Filename:    header.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}
