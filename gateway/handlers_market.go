package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/evansochadeka/BenFarm/pkg/auth"
	"github.com/evansochadeka/BenFarm/pkg/catalog"
	"github.com/evansochadeka/BenFarm/pkg/models"
	"github.com/evansochadeka/BenFarm/pkg/pos"
)

func (g *Gateway) register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	user, err := g.app.Auth.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (g *Gateway) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	user, token, err := g.app.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	maxAge := int(g.config.Auth.TokenTTL.Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, token, maxAge, "/", "", g.config.IsProduction(), true)
	c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
}

func (g *Gateway) logout(c *gin.Context) {
	c.SetCookie(sessionCookie, "", -1, "/", "", g.config.IsProduction(), true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (g *Gateway) me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": currentUser(c)})
}

func (g *Gateway) listProducts(c *gin.Context) {
	products, total, err := g.app.Catalog.ListPublic(c.Request.Context(), catalog.Filter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
		SellerID: uint(intQuery(c, "seller_id", 0)),
		Page:     intQuery(c, "page", 1),
		PerPage:  intQuery(c, "per_page", 24),
	})
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "total": total})
}

func (g *Gateway) productCategories(c *gin.Context) {
	cats, err := g.app.Catalog.Categories(c.Request.Context())
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": cats})
}

func (g *Gateway) getProduct(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	p, err := g.app.Catalog.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": p})
}

func (g *Gateway) listInventory(c *gin.Context) {
	items, err := g.app.Catalog.ListOwned(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": items})
}

func (g *Gateway) createProduct(c *gin.Context) {
	var in catalog.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	p, err := g.app.Catalog.Create(c.Request.Context(), currentUser(c).ID, in)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"product": p})
}

func (g *Gateway) updateProduct(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var upd catalog.ProductUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	p, err := g.app.Catalog.Update(c.Request.Context(), currentUser(c).ID, id, upd)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": p})
}

func (g *Gateway) deleteProduct(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := g.app.Catalog.Delete(c.Request.Context(), currentUser(c).ID, id); err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type stockRequest struct {
	Quantity int    `json:"quantity"`
	Note     string `json:"note"`
}

func (g *Gateway) restockProduct(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req stockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	p, err := g.app.Catalog.Restock(c.Request.Context(), currentUser(c).ID, id, req.Quantity, req.Note)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": p})
}

func (g *Gateway) adjustProduct(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req stockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	p, err := g.app.Catalog.Adjust(c.Request.Context(), currentUser(c).ID, id, req.Quantity, req.Note)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": p})
}

func (g *Gateway) lowStock(c *gin.Context) {
	items, err := g.app.Catalog.LowStock(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": items})
}

func (g *Gateway) sellerLedger(c *gin.Context) {
	logs, err := g.app.Ledger.ListBySeller(c.Request.Context(), currentUser(c).ID, intQuery(c, "limit", 100))
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (g *Gateway) productLedger(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := g.app.Catalog.GetOwned(ctx, currentUser(c).ID, id); err != nil {
		respondError(c, g.logger, err)
		return
	}
	logs, err := g.app.Ledger.ListByProduct(ctx, id, intQuery(c, "limit", 100))
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (g *Gateway) viewCart(c *gin.Context) {
	summary, err := g.app.Cart.View(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type cartItemRequest struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

func (g *Gateway) addCartItem(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	qty, err := g.app.Cart.AddItem(c.Request.Context(), currentUser(c).ID, req.ProductID, req.Quantity)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product_id": req.ProductID, "quantity": qty})
}

func (g *Gateway) setCartItem(c *gin.Context) {
	id, ok := idParam(c, "productID")
	if !ok {
		return
	}
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := g.app.Cart.SetItem(c.Request.Context(), currentUser(c).ID, id, req.Quantity); err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product_id": id, "quantity": req.Quantity})
}

func (g *Gateway) removeCartItem(c *gin.Context) {
	id, ok := idParam(c, "productID")
	if !ok {
		return
	}
	if err := g.app.Cart.RemoveItem(c.Request.Context(), currentUser(c).ID, id); err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (g *Gateway) clearCart(c *gin.Context) {
	if err := g.app.Cart.Clear(c.Request.Context(), currentUser(c).ID); err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type checkoutRequest struct {
	Notes string `json:"notes"`
}

func (g *Gateway) checkout(c *gin.Context) {
	var req checkoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	res, err := g.app.Checkout.Checkout(c.Request.Context(), currentUser(c).ID, req.Notes)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (g *Gateway) listOrders(c *gin.Context) {
	list, err := g.app.Orders.ListForBuyer(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list})
}

func (g *Gateway) getOrder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	o, err := g.app.Orders.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

func (g *Gateway) orderHistory(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	history, err := g.app.Orders.History(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (g *Gateway) updateOrderStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	to, valid := models.ParseOrderStatus(req.Status)
	if !valid {
		badRequest(c, "invalid status")
		return
	}
	o, err := g.app.Orders.UpdateStatus(c.Request.Context(), currentUser(c), id, to)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

func (g *Gateway) sellerOrders(c *gin.Context) {
	list, err := g.app.Orders.ListForSeller(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list})
}

func (g *Gateway) deliveries(c *gin.Context) {
	list, err := g.app.Orders.ListForRider(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list})
}

func (g *Gateway) createSale(c *gin.Context) {
	var req pos.SaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	sale, err := g.app.POS.Sell(c.Request.Context(), currentUser(c).ID, req)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	g.logger.Debug("POS sale recorded", zap.String("receipt", sale.ReceiptNumber))
	c.JSON(http.StatusCreated, gin.H{"sale": sale})
}

func (g *Gateway) listSales(c *gin.Context) {
	sales, err := g.app.POS.ListSales(c.Request.Context(), currentUser(c).ID, intQuery(c, "limit", 50))
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": sales})
}

func (g *Gateway) posDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, g.app.POS.Dashboard(c.Request.Context(), currentUser(c).ID))
}

func (g *Gateway) listCustomers(c *gin.Context) {
	list, err := g.app.POS.ListCustomers(c.Request.Context(), currentUser(c).ID, c.Query("search"))
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": list})
}

func (g *Gateway) createCustomer(c *gin.Context) {
	var in pos.CustomerInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	cust, err := g.app.POS.CreateCustomer(c.Request.Context(), currentUser(c).ID, in)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"customer": cust})
}

func (g *Gateway) getCustomer(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	detail, err := g.app.POS.GetCustomer(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		respondError(c, g.logger, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}
