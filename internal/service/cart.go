package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/a-nagdy/anasityshop/internal/domain"
	"github.com/a-nagdy/anasityshop/internal/repository"
	apperrors "github.com/a-nagdy/anasityshop/pkg/errors"
	"github.com/a-nagdy/anasityshop/pkg/validator"
)

// MaxItemsPerCart is the maximum number of distinct lines in a cart.
const MaxItemsPerCart = 50

// AddItemInput holds the parameters for adding a product to the cart.
type AddItemInput struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1,lte=99"`
}

// UpdateQuantityInput holds the new quantity of a cart line. Zero removes it.
type UpdateQuantityInput struct {
	Quantity int `json:"quantity" validate:"gte=0,lte=99"`
}

var errCartConflict = apperrors.Conflict("cart was modified concurrently, please retry")

// CartService implements the business logic for cart operations. Every
// mutation recalculates the totals and saves with a version check.
type CartService struct {
	repo     repository.CartRepository
	products repository.ProductRepository
	logger   *slog.Logger
	cartTTL  time.Duration
	now      func() time.Time
}

// NewCartService creates a new cart service.
func NewCartService(repo repository.CartRepository, products repository.ProductRepository, logger *slog.Logger, cartTTL time.Duration) *CartService {
	return &CartService{
		repo:     repo,
		products: products,
		logger:   logger,
		cartTTL:  cartTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetCart retrieves the cart for a user. If no cart exists, returns an empty cart.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("authentication required")
	}
	return s.getOrCreateCart(ctx, userID)
}

// AddItem adds a product to the user's cart, merging with an existing line.
// The price is always taken from the product record.
func (s *CartService) AddItem(ctx context.Context, userID string, input AddItemInput) (*domain.Cart, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("authentication required")
	}
	if err := validator.Validate(input); err != nil {
		return nil, err
	}

	product, err := s.products.GetByID(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("product", input.ProductID)
		}
		return nil, fmt.Errorf("get product for cart: %w", err)
	}
	if product.Status != domain.ProductStatusPublished {
		return nil, apperrors.NotFound("product", input.ProductID)
	}

	cart, err := s.getOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	expectedVersion := cart.Version

	if len(cart.Items) > 0 && cart.Currency != product.Currency {
		return nil, apperrors.InvalidInput(fmt.Sprintf("cart currency is %s, product is priced in %s", cart.Currency, product.Currency))
	}
	cart.Currency = product.Currency

	qty := input.Quantity
	if i := cart.FindItem(product.ID); i >= 0 {
		qty += cart.Items[i].Quantity
	} else if len(cart.Items) >= MaxItemsPerCart {
		return nil, apperrors.InvalidInput(fmt.Sprintf("cart must not contain more than %d items", MaxItemsPerCart))
	}
	if !product.InStock(min(qty, domain.MaxCartItemQuantity)) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("only %d units of %s in stock", product.Stock, product.Name))
	}

	item := domain.CartItem{
		ProductID: product.ID,
		Name:      product.Name,
		Price:     product.BasePrice,
		Quantity:  input.Quantity,
	}
	if len(product.Images) > 0 {
		item.ImageURL = product.Images[0]
	}
	cart.AddItem(item)

	if err := s.save(ctx, cart, expectedVersion); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("user_id", userID),
		slog.String("product_id", input.ProductID),
		slog.Int("quantity", input.Quantity),
	)

	return cart, nil
}

// UpdateItemQuantity sets the quantity of a line. Zero removes the line.
func (s *CartService) UpdateItemQuantity(ctx context.Context, userID, productID string, input UpdateQuantityInput) (*domain.Cart, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("authentication required")
	}
	if err := validator.Validate(input); err != nil {
		return nil, err
	}

	cart, err := s.existingCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	expectedVersion := cart.Version

	if !cart.SetQuantity(productID, input.Quantity) {
		return nil, apperrors.NotFound("cart item", productID)
	}

	if err := s.save(ctx, cart, expectedVersion); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "cart item quantity updated",
		slog.String("user_id", userID),
		slog.String("product_id", productID),
		slog.Int("quantity", input.Quantity),
	)

	return cart, nil
}

// RemoveItem removes a product line from the cart.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("authentication required")
	}

	cart, err := s.existingCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	expectedVersion := cart.Version

	if !cart.RemoveItem(productID) {
		return nil, apperrors.NotFound("cart item", productID)
	}

	if err := s.save(ctx, cart, expectedVersion); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "item removed from cart",
		slog.String("user_id", userID),
		slog.String("product_id", productID),
	)

	return cart, nil
}

// ClearCart removes the user's cart.
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	if userID == "" {
		return apperrors.Unauthorized("authentication required")
	}

	if err := s.repo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}

	s.logger.InfoContext(ctx, "cart cleared",
		slog.String("user_id", userID),
	)

	return nil
}

func (s *CartService) save(ctx context.Context, cart *domain.Cart, expectedVersion int) error {
	now := s.now()
	cart.Recalculate()
	cart.UpdatedAt = now
	cart.ExpiresAt = now.Add(s.cartTTL)

	if err := s.repo.SaveIfVersion(ctx, cart, expectedVersion); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return errCartConflict
		}
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (s *CartService) existingCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("cart", userID)
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

// getOrCreateCart retrieves the cart for a user, creating an empty one if it does not exist.
func (s *CartService) getOrCreateCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.NewCart(userID, defaultCurrency, s.now(), s.cartTTL), nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}
