// @title ParkPOS API
// @version 1.0
// @description Cash register of a parking lot: one open cash session at a time, vehicle entries and exits, sales and expenses.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

func main() {
	Execute()
}
