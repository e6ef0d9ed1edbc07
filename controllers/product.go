package controllers

import (
	"context"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-storefront/models"
)

type ProductRepository interface {
	Create(ctx context.Context, p *models.Product) error
	GetProduct(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	List(ctx context.Context, category string) ([]models.Product, error)
	Update(ctx context.Context, p *models.Product) (*models.Product, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// Restocker adds units back to a product's stock.
type Restocker interface {
	Release(ctx context.Context, productID primitive.ObjectID, qty int) error
}

// ProductController handles product-related requests
type ProductController struct {
	Products ProductRepository
	Stock    Restocker
}

func NewProductController(products ProductRepository, stock Restocker) *ProductController {
	return &ProductController{Products: products, Stock: stock}
}

// CreateProduct handles adding a new product (Admin only)
func (pc *ProductController) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var product models.Product
	if !decode(w, r, &product) {
		return
	}
	product.ID = primitive.NilObjectID
	if err := product.Validate(); err != nil {
		respondError(w, r, err)
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	if err := pc.Products.Create(ctx, &product); err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, product)
}

// GetProducts lists the catalog, optionally filtered by ?category=
func (pc *ProductController) GetProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := storeContext(r)
	defer cancel()

	products, err := pc.Products.List(ctx, strings.TrimSpace(r.URL.Query().Get("category")))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if products == nil {
		products = []models.Product{}
	}

	respondJSON(w, http.StatusOK, products)
}

func (pc *ProductController) GetProductByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	product, err := pc.Products.GetProduct(ctx, id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, product)
}

// UpdateProduct replaces catalog fields. Stock only changes through restock
// and orders.
func (pc *ProductController) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var product models.Product
	if !decode(w, r, &product) {
		return
	}
	product.ID = id
	product.Stock = 0
	if err := product.Validate(); err != nil {
		respondError(w, r, err)
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	updated, err := pc.Products.Update(ctx, &product)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, updated)
}

func (pc *ProductController) Restock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var input struct {
		Quantity int `json:"quantity"`
	}
	if !decode(w, r, &input) {
		return
	}
	if input.Quantity < 1 {
		badRequest(w, r, "quantity must be at least 1")
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	if err := pc.Stock.Release(ctx, id, input.Quantity); err != nil {
		respondError(w, r, err)
		return
	}
	product, err := pc.Products.GetProduct(ctx, id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, product)
}

func (pc *ProductController) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	if err := pc.Products.Delete(ctx, id); err != nil {
		respondError(w, r, err)
		return
	}

	respondMessage(w, http.StatusOK, "Product deleted successfully")
}
