package schema

// XMLTags maps each canonical field to the element or attribute names used by
// supplier XML feeds, including the NF-e item tags (vUnCom, qCom, pICMS, ...).
// Tags are tried in order and compared exactly first, then case-insensitively.
var XMLTags = AliasTable{
	{ProductCode, []string{"codigo", "cod", "product_code", "codigo_produto", "productCode"}},
	{Description, []string{"descricao", "desc", "description", "produto", "nome"}},
	{ShortDescription, []string{"descricao_curta", "desc_curta", "shortDescription"}},
	{ProductType, []string{"tipo", "type", "product_type", "productType"}},
	{ProductGroup, []string{"grupo", "group", "product_group", "productGroup"}},
	{ProductCategory, []string{"categoria", "category", "product_category"}},
	{UnitOfMeasure, []string{"unidade", "um", "unit", "unitOfMeasure"}},
	{SecondUnit, []string{"segunda_unidade", "secondUnit"}},
	{ConversionFactor, []string{"fator_conversao", "conversionFactor", "fator"}},
	{SalePrice, []string{"preco_venda", "preco", "price", "salePrice", "valor"}},
	{CostPrice, []string{"preco_custo", "custo", "cost", "costPrice"}},
	{Currency, []string{"moeda", "currency"}},
	{CurrentStock, []string{"estoque", "stock", "currentStock", "qtd", "quantidade"}},
	{MinimumStock, []string{"estoque_minimo", "minimumStock", "minStock"}},
	{WarehouseCode, []string{"armazem", "warehouse", "warehouseCode", "local"}},
	{NCMCode, []string{"ncm", "codigo_ncm", "ncmCode"}},
	{IPIPercentage, []string{"ipi", "ipi_percentage", "percentualIpi", "vIPI", "pIPI", "aliq_ipi", "aliqIPI"}},
	{ICMSPercentage, []string{"icms", "icms_percentage", "percentualIcms", "vICMS", "pICMS", "aliq_icms", "aliqICMS"}},
	{ICMSBase, []string{"icms_base", "base_icms", "vBC", "baseCalculo", "baseCalculoIcms"}},
	{Origin, []string{"origem", "origin", "prod_origem", "orig"}},
	{Quantity, []string{"quantidade", "quant", "qtd", "qty", "quantity", "qCom"}},
	{UnitValue, []string{"valor_unitario", "valorUnitario", "vUnCom", "unit_value", "precoUnitario"}},
	{Discount, []string{"desconto", "discount", "vDesc"}},
	{SupplierCode, []string{"fornecedor_codigo", "cod_fornecedor", "supplierCode"}},
	{SupplierName, []string{"fornecedor_nome", "fornecedor", "supplier", "supplierName"}},
	{Barcode, []string{"codigo_barras", "barcode", "ean"}},
	{Weight, []string{"peso", "weight"}},
	{WeightUnit, []string{"peso_unidade", "weightUnit"}},
	{Active, []string{"ativo", "active", "status"}},
	{Observations, []string{"observacoes", "obs", "observations", "notas"}},
}

// ProductElements are the element names searched, in order and at any depth,
// for the repeating product collection of an XML feed.
var ProductElements = []string{"product", "produto", "item", "Product", "Produto", "Item"}
