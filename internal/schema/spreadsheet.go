package schema

// SpreadsheetAliases maps each canonical field to the header spellings seen in
// supplier spreadsheets. Headers are compared after trimming, lowercasing and
// NFC normalisation, so every alias here is lowercase. Order matters: the first
// alias present in a file wins.
var SpreadsheetAliases = AliasTable{
	{ProductCode, []string{"codigo", "cod", "product_code", "codigo_produto", "codigo produto", "código", "código do produto", "cod bruto", `cod "bruto"`, "codigo bruto"}},
	{Description, []string{"descricao", "desc", "description", "produto", "nome", "descrição", "descrição do produto"}},
	{ShortDescription, []string{"descricao_curta", "desc_curta", "short_description", "descrição curta"}},
	{ProductType, []string{"tipo", "type", "product_type", "tipo_produto", "tipo produto"}},
	{ProductGroup, []string{"grupo", "group", "product_group", "categoria"}},
	{ProductCategory, []string{"categoria", "category", "product_category", "subcategoria"}},
	{UnitOfMeasure, []string{"unidade", "um", "unit", "unit_of_measure", "unidade_medida", "unidade de medida", "un"}},
	{SecondUnit, []string{"segunda_unidade", "second_unit", "2_unidade", "segunda un"}},
	{ConversionFactor, []string{"fator_conversao", "conversion_factor", "fator", "fator de conversão"}},
	{SalePrice, []string{"preco_venda", "preco", "price", "sale_price", "valor", "preço", "preço de venda", "preco venda"}},
	{CostPrice, []string{"preco_custo", "custo", "cost", "cost_price", "preço custo", "preço de custo"}},
	{Currency, []string{"moeda", "currency", "moe"}},
	{CurrentStock, []string{"estoque", "stock", "current_stock", "qtd", "quantidade", "estoque atual"}},
	{MinimumStock, []string{"estoque_minimo", "minimum_stock", "min_stock", "estoque min", "estoque mínimo"}},
	{WarehouseCode, []string{"armazem", "warehouse", "warehouse_code", "local", "armazém", "codigo armazem"}},
	{NCMCode, []string{"ncm", "codigo_ncm", "ncm_code"}},
	{IPIPercentage, []string{"ipi", "ipi_percentage", "percentual_ipi", "% ipi", "perc ipi", "aliq ipi", "aliq_ipi"}},
	{ICMSPercentage, []string{"icms", "icms_percentage", "percentual_icms", "% icms", "perc icms", "aliq icms", "aliq_icms", "icms?"}},
	{ICMSBase, []string{"icms_base", "base_icms", "base calc icms", "base_calc_icms", "base calculo icms"}},
	{Origin, []string{"origem", "origin", "produto_origem"}},
	{Quantity, []string{"quantidade", "quant", "qtd", "qty", "quantity"}},
	{UnitValue, []string{"valor_unitario", "valor unitario", "valor unit", "unit_value", "preco_unitario", "preço unitário"}},
	{Discount, []string{"desconto", "discount", "desc", "desconto?"}},
	{SupplierCode, []string{"fornecedor_codigo", "cod_fornecedor", "supplier_code", "código fornecedor", "codigo fornecedor"}},
	{SupplierName, []string{"fornecedor_nome", "fornecedor", "supplier", "supplier_name", "nome fornecedor"}},
	{Barcode, []string{"codigo_barras", "barcode", "ean", "código de barras", "codigo de barras"}},
	{Weight, []string{"peso", "weight", "peso_kg"}},
	{WeightUnit, []string{"peso_unidade", "weight_unit", "un_peso", "unidade peso"}},
	{Active, []string{"ativo", "active", "status"}},
	{Observations, []string{"observacoes", "obs", "observations", "observações", "observacao", "notas"}},
}
